package methods

import (
	"context"
	"strings"

	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
)

// ClientStatus is the result of snap_getClientStatus.
type ClientStatus struct {
	Locked        bool   `json:"locked"`
	Active        bool   `json:"active"`
	ClientVersion string `json:"clientVersion"`
}

func getClientStatusHandler() *Handler {
	return Define(Definition[struct{}]{
		Name:  "snap_getClientStatus",
		Hooks: []string{hooks.GetIsLockedName, hooks.GetIsActiveName, hooks.GetVersionName},
		Run: func(ctx context.Context, req *jsonrpc.Request, _ struct{}, h hooks.Map) (any, error) {
			isLocked, err := hooks.Get[hooks.GetIsLocked](h, hooks.GetIsLockedName)
			if err != nil {
				return nil, err
			}
			isActive, err := hooks.Get[hooks.GetIsActive](h, hooks.GetIsActiveName)
			if err != nil {
				return nil, err
			}
			version, err := hooks.Get[hooks.GetVersion](h, hooks.GetVersionName)
			if err != nil {
				return nil, err
			}
			return ClientStatus{
				Locked:        isLocked(ctx),
				Active:        isActive(ctx),
				ClientVersion: version(ctx),
			}, nil
		},
	})
}

func getPreferencesHandler() *Handler {
	return Define(Definition[struct{}]{
		Name:  "snap_getPreferences",
		Hooks: []string{hooks.GetPreferencesName},
		Run: func(ctx context.Context, req *jsonrpc.Request, _ struct{}, h hooks.Map) (any, error) {
			getPreferences, err := hooks.Get[hooks.GetPreferences](h, hooks.GetPreferencesName)
			if err != nil {
				return nil, err
			}
			return getPreferences(ctx)
		},
	})
}

type currencyRateParams struct {
	Currency string `json:"currency"`
}

func getCurrencyRateHandler() *Handler {
	return Define(Definition[currencyRateParams]{
		Name:  "snap_getCurrencyRate",
		Hooks: []string{hooks.GetCurrencyRateName},
		Schema: `{
			"type": "object",
			"required": ["currency"],
			"properties": {"currency": {"type": "string", "minLength": 1}}
		}`,
		Run: func(ctx context.Context, req *jsonrpc.Request, p currencyRateParams, h hooks.Map) (any, error) {
			getRate, err := hooks.Get[hooks.GetCurrencyRate](h, hooks.GetCurrencyRateName)
			if err != nil {
				return nil, err
			}
			rate, err := getRate(ctx, strings.ToLower(p.Currency))
			if err != nil {
				return nil, err
			}
			if rate == nil {
				return nil, nil
			}
			return rate, nil
		},
	})
}
