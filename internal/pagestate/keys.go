package pagestate

import (
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// keyEvaluator compiles and caches JMESPath key expressions.
type keyEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*jmespath.JMESPath
}

func newKeyEvaluator() *keyEvaluator {
	return &keyEvaluator{cache: make(map[string]*jmespath.JMESPath)}
}

// key names the artifact of a result in the cache. Precedence: the
// renderer's key, the step's key expression, then the query name suffixed
// with the carried condition value.
func (e *keyEvaluator) key(step QueryStep, cond *core.Condition, payload core.Payload, art Artifact) (string, error) {
	if art.Key != "" {
		return art.Key, nil
	}
	if step.Key != "" {
		data := payload.Raw
		if data == nil {
			data = map[string]any{"id": payload.ID, "name": payload.Name}
		}
		v, err := e.evaluate(step.Key, data)
		if err != nil {
			return "", err
		}
		if v != nil {
			return fmt.Sprintf("%v", v), nil
		}
	}
	if cond != nil {
		return step.Name + "/" + cond.ValueString(), nil
	}
	return step.Name, nil
}

func (e *keyEvaluator) evaluate(expression string, data any) (any, error) {
	compiled, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid key expression %q: %w", expression, err)
	}
	v, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate key expression %q: %w", expression, err)
	}
	return v, nil
}

func (e *keyEvaluator) compile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}
