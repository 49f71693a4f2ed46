package methods

import (
	"context"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/snaps"
)

// SnapsDirectoryOrigin is the only origin allowed to list every installed snap.
const SnapsDirectoryOrigin = "https://snaps.metamask.io"

const snapIDPattern = `^(npm|local):.+`

func getAllSnapsHandler() *Handler {
	return Define(Definition[struct{}]{
		Name:           "wallet_getAllSnaps",
		Hooks:          []string{hooks.GetAllSnapsName},
		AllowedOrigins: []string{SnapsDirectoryOrigin},
		Run: func(ctx context.Context, req *jsonrpc.Request, _ struct{}, h hooks.Map) (any, error) {
			getAllSnaps, err := hooks.Get[hooks.GetAllSnaps](h, hooks.GetAllSnapsName)
			if err != nil {
				return nil, err
			}
			return getAllSnaps(ctx)
		},
	})
}

func getSnapsHandler() *Handler {
	return Define(Definition[struct{}]{
		Name:  "wallet_getSnaps",
		Hooks: []string{hooks.GetSnapsName},
		Run: func(ctx context.Context, req *jsonrpc.Request, _ struct{}, h hooks.Map) (any, error) {
			getSnaps, err := hooks.Get[hooks.GetSnaps](h, hooks.GetSnapsName)
			if err != nil {
				return nil, err
			}
			return getSnaps(ctx)
		},
	})
}

const requestSnapsSchema = `{
	"type": "object",
	"minProperties": 1,
	"propertyNames": {"pattern": "` + snapIDPattern + `"},
	"additionalProperties": {
		"type": "object",
		"properties": {"version": {"type": "string"}}
	}
}`

// requestSnapsHandler runs the permission merge. Hook failures are captured
// into the response rather than returned, so the caller sees user rejections
// and install errors with their own codes.
func requestSnapsHandler(merger *snaps.Merger) *Handler {
	schema := mustCompileSchema("wallet_requestSnaps", requestSnapsSchema)

	impl := func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) error {
		var requested snaps.SnapSet
		if rpcErr := decodeParams(schema, req.Params, &requested); rpcErr != nil {
			end(rpcErr)
			return nil
		}

		mergeHooks, err := hooks.MergeHooks(h)
		if err != nil {
			return err
		}

		out := merger.RequestSnaps(ctx, req.Origin, requested, mergeHooks)
		if out.Err != nil {
			res.SetError(jsonrpc.FromError(out.Err))
		} else {
			res.SetResult(out.Result)
		}
		end(nil)
		return nil
	}

	return &Handler{
		MethodNames:    []string{"wallet_requestSnaps"},
		HookNames:      []string{hooks.InstallSnapsName, hooks.RequestPermissionsName, hooks.GetPermissionsName},
		Implementation: impl,
	}
}

type invokeSnapParams struct {
	SnapID  string `json:"snapId"`
	Request struct {
		Method string `json:"method"`
		Params any    `json:"params"`
	} `json:"request"`
}

const invokeSnapSchema = `{
	"type": "object",
	"required": ["snapId", "request"],
	"properties": {
		"snapId": {"type": "string", "pattern": "` + snapIDPattern + `"},
		"request": {
			"type": "object",
			"required": ["method"],
			"properties": {
				"method": {"type": "string", "minLength": 1},
				"params": {"type": ["object", "array"]}
			}
		}
	}
}`

func invokeSnapHandler() *Handler {
	return Define(Definition[invokeSnapParams]{
		Name:   "wallet_invokeSnap",
		Hooks:  []string{hooks.InvokeSnapName},
		Schema: invokeSnapSchema,
		Run: func(ctx context.Context, req *jsonrpc.Request, p invokeSnapParams, h hooks.Map) (any, error) {
			invoke, err := hooks.Get[hooks.InvokeSnap](h, hooks.InvokeSnapName)
			if err != nil {
				return nil, err
			}
			return invoke(ctx, hooks.SnapRequest{
				SnapID: p.SnapID,
				Method: p.Request.Method,
				Params: p.Request.Params,
			})
		},
	})
}
