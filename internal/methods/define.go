package methods

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
)

// violationPrinter formats schema violations.
var violationPrinter = message.NewPrinter(language.English)

// Definition describes a method built from the standard template: validate
// params, decode them into P, call Run and write its result.
type Definition[P any] struct {
	Name           string
	Hooks          []string
	AllowedOrigins []string
	// Schema is the JSON Schema for params. Empty means params are ignored.
	Schema string
	Run    func(ctx context.Context, req *jsonrpc.Request, params P, h hooks.Map) (any, error)
}

// Define builds a handler from d. It panics if the schema does not compile.
//
// Run may return a *jsonrpc.Error, which is sent to the caller verbatim. Any
// other error becomes an internal error.
func Define[P any](d Definition[P]) *Handler {
	var schema *jsonschema.Schema
	if d.Schema != "" {
		schema = mustCompileSchema(d.Name, d.Schema)
	}

	impl := func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) error {
		var params P
		if schema != nil {
			if rpcErr := decodeParams(schema, req.Params, &params); rpcErr != nil {
				end(rpcErr)
				return nil
			}
		}

		result, err := d.Run(ctx, req, params, h)
		if err != nil {
			var rpcErr *jsonrpc.Error
			if errors.As(err, &rpcErr) {
				end(rpcErr)
				return nil
			}
			return errors.Wrap(err, d.Name)
		}
		res.SetResult(result)
		end(nil)
		return nil
	}

	return &Handler{
		MethodNames:    []string{d.Name},
		HookNames:      d.Hooks,
		AllowedOrigins: d.AllowedOrigins,
		Implementation: impl,
	}
}

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s params schema: %v", name, err))
	}

	url := name + ".params.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", url, err))
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", url, err))
	}
	return sch
}

// decodeParams validates params against schema and decodes them into out.
func decodeParams(schema *jsonschema.Schema, params any, out any) *jsonrpc.Error {
	if violations := validateParams(schema, params); len(violations) > 0 {
		return jsonrpc.NewInvalidParams("Invalid params: %s", strings.Join(violations, "; "))
	}
	if params == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return jsonrpc.NewInternalError(err)
	}
	if err := decoder.Decode(params); err != nil {
		return jsonrpc.NewInvalidParams("Invalid params: %v", err)
	}
	return nil
}

// validateParams returns one "<path>: <violation>" entry per leaf error.
func validateParams(schema *jsonschema.Schema, params any) []string {
	err := schema.Validate(params)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var violations []string
	collectViolations(ve, &violations)
	return violations
}

func collectViolations(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(violationPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectViolations(c, out)
	}
}
