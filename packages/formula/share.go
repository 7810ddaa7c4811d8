package formula

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Query parameters of a share link
const (
	ParamFormulas  = "f"
	ParamVariables = "v"
	ParamOptions   = "o"
)

// State is everything needed to restore a sheet: its templates in order,
// the variable bindings and the angle mode.
type State struct {
	Templates []string          `json:"formulas" yaml:"formulas"`
	Variables map[string]string `json:"variables" yaml:"variables"`
	UseDegree bool              `json:"useDegree" yaml:"degree"`
}

type shareOptions struct {
	UseDegree *bool `json:"useDegree"`
}

// EncodeShare encodes state as share link parameters. Every parameter is
// base64 encoded JSON.
func EncodeShare(state State) url.Values {
	templates := state.Templates
	if templates == nil {
		templates = []string{}
	}
	variables := state.Variables
	if variables == nil {
		variables = map[string]string{}
	}
	useDegree := state.UseDegree

	values := url.Values{}
	values.Set(ParamFormulas, encodeParam(templates))
	values.Set(ParamVariables, encodeParam(variables))
	values.Set(ParamOptions, encodeParam(shareOptions{UseDegree: &useDegree}))
	return values
}

// QueryString renders state as the query part of a share link, with the
// parameters in the order f, v, o.
func QueryString(state State) string {
	values := EncodeShare(state)
	var b strings.Builder
	for i, key := range []string{ParamFormulas, ParamVariables, ParamOptions} {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(key)))
	}
	return b.String()
}

func encodeParam(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// only plain strings, maps and bools are encoded
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeShare restores state from share link parameters. Parameters that
// are missing keep their zero value; parameters that cannot be decoded are
// skipped and reported in the returned error, while the others still
// apply.
func DecodeShare(values url.Values) (State, error) {
	var state State
	var errs []error

	if raw := values.Get(ParamFormulas); raw != "" {
		templates, err := decodeTemplates(raw)
		if err != nil {
			errs = append(errs, paramError(ParamFormulas, err))
		} else {
			state.Templates = templates
		}
	}

	if raw := values.Get(ParamVariables); raw != "" {
		variables, err := decodeVariables(raw)
		if err != nil {
			errs = append(errs, paramError(ParamVariables, err))
		} else {
			state.Variables = variables
		}
	}

	if raw := values.Get(ParamOptions); raw != "" {
		var opts shareOptions
		data, err := decodeBase64(raw)
		if err == nil {
			err = json.Unmarshal(data, &opts)
		}
		if err != nil {
			errs = append(errs, paramError(ParamOptions, err))
		} else if opts.UseDegree != nil {
			state.UseDegree = *opts.UseDegree
		}
	}

	return state, errors.Join(errs...)
}

// ParseShareQuery decodes a share link or just its query part.
func ParseShareQuery(link string) (State, error) {
	if i := strings.IndexByte(link, '?'); i >= 0 {
		link = link[i+1:]
	}
	values, err := url.ParseQuery(link)
	if err != nil {
		return State{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid share link: %v", err))
	}
	return DecodeShare(values)
}

func paramError(param string, err error) error {
	return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid share parameter %q: %v", param, err))
}

// decodeBase64 accepts padded and unpadded, standard and URL-safe input.
func decodeBase64(s string) ([]byte, error) {
	// an unescaped '+' arrives as a blank
	s = strings.ReplaceAll(s, " ", "+")
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// decodeTemplates accepts a JSON array of templates, or the older format
// of templates joined by commas.
func decodeTemplates(raw string) ([]string, error) {
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, err
	}
	var templates []string
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		if err := json.Unmarshal(data, &templates); err == nil {
			return templates, nil
		}
	}
	return strings.Split(string(data), ","), nil
}

// decodeVariables accepts string values as they are and renders any other
// JSON scalar as its literal text.
func decodeVariables(raw string) (map[string]string, error) {
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("not an object")
	}
	variables := make(map[string]string, len(fields))
	for name, value := range fields {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			variables[name] = "null"
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			variables[name] = s
			continue
		}
		variables[name] = string(value)
	}
	return variables, nil
}
