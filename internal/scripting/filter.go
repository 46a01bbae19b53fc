package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

// FilterHook is the Lua global called once per item by Filter.Apply.
//
// Signature: filter_item(item, ctx) -> boolean. Returning false excludes the
// item from the current roll; any other value, or a runtime error, keeps it.
const FilterHook = "filter_item"

// Filter narrows a catalog with Lua rules before each roll.
//
// A Filter with no scripts loaded passes every item through. Filter is safe
// for concurrent use; calls into the VM are serialized.
type Filter struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

// NewFilter creates an empty Filter.
//
// Precondition: logger must be non-nil.
func NewFilter(logger *zap.Logger) *Filter {
	return &Filter{logger: logger}
}

// LoadDir executes every *.lua file in dir, in lexical order, in a fresh
// sandboxed VM that replaces any previously loaded one.
//
// Precondition: dir must be a readable directory.
// Postcondition: On error the previous VM stays in place.
func (f *Filter) LoadDir(dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState(instLimit)
	for _, path := range files {
		if err := Limited(L, instLimit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	f.swap(L, instLimit)
	f.logger.Info("catalog rules loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
	)
	return nil
}

// LoadString executes src in a fresh sandboxed VM that replaces any previously loaded one.
//
// Postcondition: On error the previous VM stays in place.
func (f *Filter) LoadString(src string, instLimit int) error {
	L := NewSandboxedState(instLimit)
	if err := Limited(L, instLimit, func() error { return L.DoString(src) }); err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading rule source: %w", err)
	}
	f.swap(L, instLimit)
	return nil
}

func (f *Filter) swap(L *lua.LState, instLimit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.L != nil {
		f.L.Close()
	}
	f.L = L
	f.limit = instLimit
}

// Close releases the VM. Apply passes items through after Close.
func (f *Filter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.L != nil {
		f.L.Close()
		f.L = nil
	}
}

// Apply returns the items of catalog kept by the filter_item hook at instant now.
// A rule set that would exclude every item of a category is ignored for
// that category, so rules can narrow a category but never empty it.
//
// Postcondition: Returns a newly allocated slice; catalog is not modified.
func (f *Filter) Apply(catalog []dice.OutcomeItem, now time.Time) []dice.OutcomeItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]dice.OutcomeItem, 0, len(catalog))
	if f.L == nil {
		return append(out, catalog...)
	}
	fn := f.L.GetGlobal(FilterHook)
	if fn == lua.LNil {
		return append(out, catalog...)
	}

	ctx := f.contextTable(now)
	kept := make(map[dice.Category]int, len(dice.Categories))
	total := make(map[dice.Category]int, len(dice.Categories))
	for _, it := range catalog {
		total[it.Category]++
		if f.keep(fn, it, ctx) {
			kept[it.Category]++
			out = append(out, it)
		}
	}

	for _, c := range dice.Categories {
		if total[c] > 0 && kept[c] == 0 {
			f.logger.Warn("catalog rules excluded every item of a category, ignoring them",
				zap.String("category", string(c)),
			)
			for _, it := range catalog {
				if it.Category == c {
					out = append(out, it)
				}
			}
		}
	}
	return out
}

func (f *Filter) keep(fn lua.LValue, it dice.OutcomeItem, ctx *lua.LTable) bool {
	var ret lua.LValue = lua.LNil
	err := Limited(f.L, f.limit, func() error {
		if err := f.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, itemTable(f.L, it), ctx); err != nil {
			return err
		}
		ret = f.L.Get(-1)
		f.L.Pop(1)
		return nil
	})
	if err != nil {
		f.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", FilterHook),
			zap.String("item", it.ID),
			zap.Error(err),
		)
		return true
	}
	return ret != lua.LFalse
}

func (f *Filter) contextTable(now time.Time) *lua.LTable {
	t := f.L.NewTable()
	t.RawSetString("weekday", lua.LString(strings.ToLower(now.Weekday().String())))
	t.RawSetString("hour", lua.LNumber(now.Hour()))
	t.RawSetString("date", lua.LString(now.Format(dice.DateLayout)))
	return t
}

func itemTable(L *lua.LState, it dice.OutcomeItem) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(it.ID))
	t.RawSetString("label", lua.LString(it.Label))
	t.RawSetString("category", lua.LString(it.Category))
	t.RawSetString("emoji", lua.LString(it.Emoji))
	t.RawSetString("weight", lua.LNumber(it.Weight))
	actions := L.NewTable()
	for _, a := range it.Actions {
		actions.Append(lua.LString(a))
	}
	t.RawSetString("actions", actions)
	return t
}
