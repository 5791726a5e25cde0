/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package presenter

import (
	"fmt"
	"reflect"

	"mathviz/internal/scene"
	"mathviz/internal/script"
)

// armedTrigger tracks the trigger armed for the unit the cursor sits on.
// A trigger is armed exactly once per unit and fires at most once per arm;
// re-qualifying scene changes after firing are ignored until the next unit
// arms. A dead trigger (broken predicate) never fires; the unit stays
// reachable through Advance or Seek.
type armedTrigger struct {
	spec  script.TriggerSpec
	fired bool
	dead  bool
}

// evaluate decides whether a scene transition satisfies the armed trigger.
// It never fires twice and marks the arm dead on predicate errors.
func (a *armedTrigger) evaluate(prev, cur scene.State) (fire bool, err error) {
	if a == nil || a.fired || a.dead {
		return false, nil
	}
	switch a.spec.Kind {
	case script.TriggerParameterChange:
		// any patch qualifies, even one that writes the same values
		a.fired = true
		return true, nil
	case script.TriggerAnimationEvent:
		ok, err := evalPredicate(a.spec.Predicate, prev, cur)
		if err != nil {
			a.dead = true
			return false, err
		}
		if ok {
			a.fired = true
		}
		return ok, nil
	}
	return false, nil
}

// evalPredicate applies a typed predicate to a state transition.
// FieldEquals fires on the transition into the target value, not while the
// value merely stays there, so repeated patches cannot re-fire the arm.
func evalPredicate(p *script.Predicate, prev, cur scene.State) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("animation-event trigger has no predicate")
	}
	curVal, ok := cur.Field(p.Field)
	if !ok {
		return false, fmt.Errorf("predicate references unknown field %q", p.Field)
	}
	prevVal, _ := prev.Field(p.Field)
	switch p.Kind {
	case script.FieldEquals:
		return equalValues(curVal, p.Value) && !equalValues(prevVal, p.Value), nil
	case script.FieldChanged:
		return !equalValues(prevVal, curVal), nil
	}
	return false, fmt.Errorf("unknown predicate kind %d", p.Kind)
}

// equalValues compares loosely typed values, coercing numerics so a JSON
// float64 matches a typed int field.
func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
