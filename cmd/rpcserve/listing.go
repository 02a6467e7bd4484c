package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mnehpets/rpcserve/endpoint"
	"github.com/mnehpets/rpcserve/jsonrpc"
)

// listFormat selects how the method list is written.
type listFormat string

const (
	formatText listFormat = "text"
	formatJSON listFormat = "json"
)

func (f *listFormat) UnmarshalText(b []byte) error {
	switch v := listFormat(b); v {
	case "", formatText, formatJSON:
		*f = v
		return nil
	}
	return fmt.Errorf("unknown format %q", b)
}

type listParams struct {
	Prefix []string   `query:"prefix"`
	Format listFormat `query:"format"`
}

type methodParams struct {
	Name string `path:"name"`
}

// methodIndex serves read-only views of a Server's method table.
type methodIndex struct {
	srv *jsonrpc.Server
}

// List writes registered names, one per line or as a JSON array. Repeated
// prefix parameters keep names matching any of them.
func (m methodIndex) List(_ http.ResponseWriter, _ *http.Request, p listParams) (endpoint.Renderer, error) {
	names := []string{}
	for _, name := range m.srv.Methods() {
		if matchesAny(name, p.Prefix) {
			names = append(names, name)
		}
	}
	if p.Format == formatJSON {
		return &endpoint.JSONRenderer{Value: names}, nil
	}
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return &endpoint.StringRenderer{Body: b.String()}, nil
}

// Get answers 200 with the name if the method is registered, 404 otherwise.
func (m methodIndex) Get(_ http.ResponseWriter, _ *http.Request, p methodParams) (endpoint.Renderer, error) {
	if !m.srv.Has(p.Name) {
		return nil, endpoint.Error(http.StatusNotFound, "unknown method", nil)
	}
	return &endpoint.StringRenderer{Body: p.Name + "\n"}, nil
}

func matchesAny(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
