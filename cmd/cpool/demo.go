package main

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/cpool/pool"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// Result is what Component.TaskFunc produces.
type Result struct {
	Value string
}

// Component has a task method and a callback method, to show method
// dispatch in both positions.
type Component struct {
	out *syncWriter
}

func (c *Component) TaskFunc(a int, b string) Result {
	c.out.printf(nil, "taskFunc: %d, %s\n", a, b)
	return Result{Value: "result"}
}

func (c *Component) Callback(r Result) {
	c.out.printf(green, "Callback Result: %s\n", r.Value)
}

// syncWriter serialises output from workers and the caller.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(c *color.Color, format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		_, _ = fmt.Fprintf(s.w, format, a...)
		return
	}
	_, _ = c.Fprintf(s.w, format, a...)
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through every dispatch shape",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(a, &syncWriter{w: cmd.OutOrStdout()})
		},
	}
}

func section(out *syncWriter, lines ...string) {
	rule := strings.Repeat("=", 39)
	out.printf(bold, "\n%s\n%s\n%s\n", rule, strings.Join(lines, "\n"), rule)
}

func runDemo(a *app, out *syncWriter) error {
	out.printf(nil, "%d concurrent threads are supported.\n", runtime.NumCPU())

	m := pool.NewManager(a.poolOptions(a.cfg.Workers,
		pool.WithOnTaskStart(func(info pool.TaskInfo) {
			out.printf(cyan, "[worker %d] task %d\n", info.Worker, info.ID)
		}),
	)...)
	if err := m.Start(); err != nil {
		return err
	}
	defer m.Close()

	caller := &Component{out: out}

	section(out, "Non-member function")
	{
		ret := pool.Dispatch[int](m, func(a int) int {
			out.printf(nil, "Work value = %d\n", a)
			return 2
		}, 1)
		ret.Wait()
		v, err := ret.Get()
		if err != nil {
			return err
		}
		out.printf(green, "RESULT = %d\n", v)
	}

	section(out, "Member function")
	{
		ret := pool.Dispatch[Result](m, pool.Method((*Component).TaskFunc), caller, 1, "test")
		ret.Wait()
		v, err := ret.Get()
		if err != nil {
			return err
		}
		out.printf(green, "RESULT = %s\n", v.Value)
	}

	section(out, "function & callback non member function")
	{
		callback := func(v int) {
			out.printf(green, "Callback RESULT = %d\n", v)
		}
		ret := pool.DispatchWithCallback(m, func(a int) int {
			out.printf(nil, "Work value = %d\n", a)
			return 4
		}, callback, 3)
		if _, err := ret.Get(); err != nil {
			return err
		}
	}

	section(out, "function & callback member function")
	{
		ret := pool.DispatchWithCallback(m, pool.Method((*Component).TaskFunc), pool.Method((*Component).Callback), caller, 1, "test")
		if _, err := ret.Get(); err != nil {
			return err
		}
	}

	section(out, "function member function", "callback non-member function")
	{
		callback := func(v Result) {
			out.printf(green, "Callback RESULT = %s\n", v.Value)
		}
		ret := pool.DispatchWithCallback(m, pool.Method((*Component).TaskFunc), callback, caller, 1, "test")
		if _, err := ret.Get(); err != nil {
			return err
		}
	}

	section(out, "function non-member function", "callback member function")
	{
		taskFunc := func(a int, b string) Result {
			out.printf(nil, "taskFunc: %d, %s\n", a, b)
			return Result{Value: "result"}
		}
		ret := pool.DispatchWithCallback(m, taskFunc, pool.Method((*Component).Callback), caller, 1, "test")
		if _, err := ret.Get(); err != nil {
			return err
		}
	}

	section(out, "Invalid Non-member function")
	{
		var cbfn func(Result)
		ret := pool.DispatchWithCallback(m, pool.Method((*Component).TaskFunc), cbfn, caller, 1, "test")
		if ret.IsValid() {
			ret.Wait()
		} else {
			out.printf(yellow, "Invalid dispatch call\n")
		}
	}

	section(out, "Failing function")
	{
		ret := pool.Dispatch[int](m, func(d int) (int, error) {
			if d == 0 {
				return 0, errors.New("division by zero")
			}
			return 10 / d, nil
		}, 0)
		if _, err := ret.Get(); err != nil {
			out.printf(red, "ERROR = %v\n", err)
		}
	}

	if err := m.Stop(); err != nil {
		return err
	}
	st := m.Stats()
	out.printf(bold, "\nsubmitted=%d completed=%d failed=%d rejected=%d\n",
		st.Submitted, st.Completed, st.Failed, st.Rejected)
	return nil
}
