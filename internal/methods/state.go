package methods

import (
	"context"
	"strings"

	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
)

type stateParams struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	Encrypted *bool  `json:"encrypted"`
}

// encrypted defaults to true when the caller does not say.
func (p stateParams) encrypted() bool {
	return p.Encrypted == nil || *p.Encrypted
}

const stateKeyPattern = `^[^.]+([.][^.]+)*$`

const getStateSchema = `{
	"type": ["object", "null"],
	"properties": {
		"key": {"type": "string", "pattern": "` + stateKeyPattern + `"},
		"encrypted": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const setStateSchema = `{
	"type": "object",
	"required": ["value"],
	"properties": {
		"key": {"type": "string", "pattern": "` + stateKeyPattern + `"},
		"value": true,
		"encrypted": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const clearStateSchema = `{
	"type": ["object", "null"],
	"properties": {"encrypted": {"type": "boolean"}},
	"additionalProperties": false
}`

func getStateHandler() *Handler {
	return Define(Definition[stateParams]{
		Name:   "snap_getState",
		Hooks:  []string{hooks.GetSnapStateName},
		Schema: getStateSchema,
		Run: func(ctx context.Context, req *jsonrpc.Request, p stateParams, h hooks.Map) (any, error) {
			getState, err := hooks.Get[hooks.GetSnapState](h, hooks.GetSnapStateName)
			if err != nil {
				return nil, err
			}
			state, err := getState(ctx, p.encrypted())
			if err != nil {
				return nil, err
			}
			if p.Key == "" {
				if state == nil {
					return nil, nil
				}
				return state, nil
			}
			return valueAt(state, p.Key), nil
		},
	})
}

func setStateHandler() *Handler {
	return Define(Definition[stateParams]{
		Name:   "snap_setState",
		Hooks:  []string{hooks.GetSnapStateName, hooks.UpdateSnapStateName},
		Schema: setStateSchema,
		Run: func(ctx context.Context, req *jsonrpc.Request, p stateParams, h hooks.Map) (any, error) {
			update, err := hooks.Get[hooks.UpdateSnapState](h, hooks.UpdateSnapStateName)
			if err != nil {
				return nil, err
			}

			if p.Key == "" {
				state, ok := p.Value.(map[string]any)
				if !ok {
					return nil, jsonrpc.NewInvalidParams("Invalid params: /value: the state must be an object when no key is given")
				}
				return nil, update(ctx, state, p.encrypted())
			}

			getState, err := hooks.Get[hooks.GetSnapState](h, hooks.GetSnapStateName)
			if err != nil {
				return nil, err
			}
			state, err := getState(ctx, p.encrypted())
			if err != nil {
				return nil, err
			}
			next, err := withValueAt(state, p.Key, p.Value)
			if err != nil {
				return nil, err
			}
			return nil, update(ctx, next, p.encrypted())
		},
	})
}

func clearStateHandler() *Handler {
	return Define(Definition[stateParams]{
		Name:   "snap_clearState",
		Hooks:  []string{hooks.ClearSnapStateName},
		Schema: clearStateSchema,
		Run: func(ctx context.Context, req *jsonrpc.Request, p stateParams, h hooks.Map) (any, error) {
			clearState, err := hooks.Get[hooks.ClearSnapState](h, hooks.ClearSnapStateName)
			if err != nil {
				return nil, err
			}
			return nil, clearState(ctx, p.encrypted())
		},
	})
}

// valueAt returns the value at a dotted key, or nil if any segment is missing.
func valueAt(state map[string]any, key string) any {
	var cur any = state
	for _, part := range strings.Split(key, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// withValueAt returns a copy of state with value stored at a dotted key.
// Objects along the path are copied; missing ones are created.
func withValueAt(state map[string]any, key string, value any) (map[string]any, error) {
	root := cloneObject(state)
	cur := root
	parts := strings.Split(key, ".")
	for i, part := range parts[:len(parts)-1] {
		child, exists := cur[part]
		if !exists || child == nil {
			obj := make(map[string]any)
			cur[part] = obj
			cur = obj
			continue
		}
		obj, ok := child.(map[string]any)
		if !ok {
			return nil, jsonrpc.NewInvalidParams("Invalid params: /key: %q is not an object", strings.Join(parts[:i+1], "."))
		}
		obj = cloneObject(obj)
		cur[part] = obj
		cur = obj
	}
	cur[parts[len(parts)-1]] = value
	return root, nil
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
