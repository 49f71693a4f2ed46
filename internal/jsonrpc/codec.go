package jsonrpc

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DecodeRequest parses a single JSON-RPC request. Malformed JSON yields a
// ParseError; well-formed JSON of the wrong shape yields InvalidRequest.
func DecodeRequest(data []byte) (*Request, *Error) {
	if !jx.Valid(data) {
		return nil, NewParseError()
	}

	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Object:
	case jx.Array:
		return nil, NewInvalidRequest("Batch requests are not supported.")
	case jx.Invalid:
		return nil, NewParseError()
	default:
		return nil, NewInvalidRequest("")
	}

	var req Request
	var shapeErr *Error
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "jsonrpc":
			if d.Next() != jx.String {
				shapeErr = NewInvalidRequest("")
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.JSONRPC = v
		case "id":
			id, ok, err := decodeID(d)
			if err != nil {
				return err
			}
			if !ok {
				shapeErr = NewInvalidRequest("")
			}
			req.ID = id
			req.hasID = true
		case "method":
			if d.Next() != jx.String {
				shapeErr = NewInvalidRequest("")
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Method = v
		case "params":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			var params interface{}
			if err := json.Unmarshal(raw, &params); err != nil {
				return errors.Wrap(err, "params")
			}
			req.Params = params
		case "origin":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Origin = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, NewParseError()
	}
	if shapeErr != nil {
		return &req, shapeErr
	}
	if req.JSONRPC != Version || req.Method == "" {
		return &req, NewInvalidRequest("")
	}
	return &req, nil
}

// decodeID accepts string, number and null ids. ok is false for any other type.
func decodeID(d *jx.Decoder) (id interface{}, ok bool, err error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return s, true, err
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, false, err
		}
		return json.Number(n.String()), true, nil
	case jx.Null:
		return nil, true, d.Null()
	default:
		return nil, false, d.Skip()
	}
}

// Encode writes the response envelope. The result payload is marshaled with
// encoding/json since it is an arbitrary Go value produced by a handler.
func (r *Response) Encode() ([]byte, error) {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("jsonrpc")
	e.Str(Version)

	e.FieldStart("id")
	if err := encodeAny(&e, r.ID); err != nil {
		return nil, errors.Wrap(err, "encode id")
	}

	if r.Error != nil {
		e.FieldStart("error")
		if err := r.Error.encode(&e); err != nil {
			return nil, err
		}
	} else {
		e.FieldStart("result")
		if err := encodeAny(&e, r.Result); err != nil {
			return nil, errors.Wrap(err, "encode result")
		}
	}

	e.ObjEnd()
	return e.Bytes(), nil
}

func (err *Error) encode(e *jx.Encoder) error {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(err.Code)
	e.FieldStart("message")
	e.Str(err.Message)
	if err.Data != nil {
		e.FieldStart("data")
		if encErr := encodeAny(e, err.Data); encErr != nil {
			return errors.Wrap(encErr, "encode error data")
		}
	}
	e.ObjEnd()
	return nil
}

func encodeAny(e *jx.Encoder, v interface{}) error {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case json.Number:
		e.Num(jx.Num(v))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		e.Raw(b)
	}
	return nil
}
