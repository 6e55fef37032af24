// Package luacheck compiles Lua fragments without running them, to catch
// syntax errors before they are packaged.
package luacheck

import (
	"fmt"
	"os"
	"strings"

	"github.com/Shopify/go-lua"
)

// SyntaxError is returned when a chunk does not compile. Msg is the parser
// message, which already carries the chunk name and line.
type SyntaxError struct {
	Name string
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return e.Msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Check compiles src as a Lua 5.2 chunk named name.
func Check(name, src string) error {
	l := lua.NewState()
	if err := lua.LoadBuffer(l, src, "@"+name, "t"); err != nil {
		msg, _ := l.ToString(-1)
		return &SyntaxError{Name: name, Msg: msg, Err: err}
	}
	return nil
}

// CheckFile reads path and compiles it.
func CheckFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Check(path, string(data))
}

// IsLua reports whether a fragment reference names a Lua source file.
func IsLua(ref string) bool {
	return strings.HasSuffix(strings.ToLower(ref), ".lua")
}
