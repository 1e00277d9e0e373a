// Package evaluator tree-walks a parsed Lotus program against a mutable
// Environment and GC.
//
// Grounded on original_source/lib/interpreter.c for expression semantics
// (is_equal's type-then-value comparison, arithmetic/comparison dispatch)
// and on interpreter.h/stack.h's interpreter_t/stack_frame_t shape for the
// call-frame and max-stack-depth policy, reworked per spec.md §9's guidance
// to model `return` as a Normal/Returning sum type instead of
// setjmp/longjmp.
package evaluator

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/aledsdavies/lotus/internal/ast"
	"github.com/aledsdavies/lotus/internal/diagnostics"
	"github.com/aledsdavies/lotus/internal/environment"
	"github.com/aledsdavies/lotus/internal/gc"
)

// MaxCallDepth bounds the evaluator's explicit call stack, mirroring
// stack.h's MAX_STACK_SIZE.
const MaxCallDepth = 100000

// RuntimeError is a fatal evaluation failure. The evaluator has no
// user-visible recovery construct other than return, so any RuntimeError
// aborts the whole run (§7).
type RuntimeError struct {
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("[Line: %d] %s", e.Line, e.Message)
}

func runtimeErrorf(line int, format string, args ...any) *RuntimeError {
	return &RuntimeError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// flow is the outcome of evaluating a statement: either normal completion
// or an in-flight `return`, propagated up through statement evaluation
// until a call frame consumes it (§9, "return as non-local exit").
type flow struct {
	returning bool
	value     *gc.Value
}

var normalFlow = flow{}

func returningFlow(v *gc.Value) flow {
	return flow{returning: true, value: v}
}

// Evaluator executes a parsed program's statements in order.
type Evaluator struct {
	env   *environment.Environment
	gc    *gc.GC
	diag  *diagnostics.Reporter
	out   io.Writer
	depth int
}

// New creates an Evaluator writing print output to out and GC-managed
// values via its own collector, wired to env for environment roots.
func New(out io.Writer, diag *diagnostics.Reporter) *Evaluator {
	env := environment.New()
	collector := gc.New()
	collector.Roots = env.Values
	return &Evaluator{env: env, gc: collector, diag: diag, out: out}
}

// Run executes every statement in order. Evaluation stops at the first
// RuntimeError (§7: runtime errors are always fatal), or when ctx is
// cancelled — checked at each top-level statement boundary, since the
// evaluator itself never suspends (§5's single-threaded cooperative model).
func (e *Evaluator) Run(ctx context.Context, stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.execStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// CollectGarbage runs one mark-and-sweep pass. The driver may call this
// between top-level statements; correctness must not depend on it running.
func (e *Evaluator) CollectGarbage() {
	e.gc.Run()
}

// --- statement evaluation (§4.3.2) ---

func (e *Evaluator) execStmt(s ast.Stmt) (flow, error) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		if _, err := e.eval(n.E); err != nil {
			return flow{}, err
		}
		e.gc.Release(1)
		return normalFlow, nil

	case *ast.Print:
		// §6: stdout is flushed after each print. os.Stdout is unbuffered,
		// so the Fprintln below already satisfies that without an explicit
		// flush step.
		v, err := e.eval(n.E)
		if err != nil {
			return flow{}, err
		}
		fmt.Fprintln(e.out, e.format(v))
		e.gc.Release(1)
		return normalFlow, nil

	case *ast.Declaration:
		v, err := e.eval(n.E)
		if err != nil {
			return flow{}, err
		}
		e.gc.Release(1)
		e.env.Bind(n.Name, v)
		return normalFlow, nil

	case *ast.Assignment:
		v, err := e.eval(n.E)
		if err != nil {
			return flow{}, err
		}
		e.gc.Release(1)
		if _, ok := e.env.Set(n.Name, v); !ok {
			return flow{}, runtimeErrorf(n.Line(), "undeclared identifier '%s'", n.Name)
		}
		return normalFlow, nil

	case *ast.If:
		cond, err := e.eval(n.Cond)
		if err != nil {
			return flow{}, err
		}
		e.gc.Release(1)
		if cond.Kind != gc.Boolean {
			return flow{}, runtimeErrorf(n.Line(), "if condition must be Boolean, got %s", cond.Kind)
		}
		if cond.Boolean {
			return e.execStmt(n.Then)
		}
		if n.Else != nil {
			return e.execStmt(n.Else)
		}
		return normalFlow, nil

	case *ast.Block:
		snapshot := e.env.Size()
		for _, child := range n.Stmts {
			f, err := e.execStmt(child)
			if err != nil {
				e.env.Restore(snapshot)
				return flow{}, err
			}
			if f.returning {
				e.env.Restore(snapshot)
				return f, nil
			}
		}
		e.env.Restore(snapshot)
		return normalFlow, nil

	case *ast.Function:
		closure := e.gc.NewClosure(n.Name, n.Formals, n.Body)
		e.env.Bind(n.Name, closure)
		return normalFlow, nil

	case *ast.Return:
		if e.depth == 0 {
			return flow{}, runtimeErrorf(n.Line(), "'return' outside a function")
		}
		v, err := e.eval(n.E)
		if err != nil {
			return flow{}, err
		}
		e.gc.Release(1)
		return returningFlow(v), nil

	default:
		return flow{}, runtimeErrorf(s.Line(), "unhandled statement node")
	}
}

// --- expression evaluation (§4.3.1) ---

// eval evaluates e and leaves its result on the GC hold stack (hold count
// +1); callers release it once they have consumed or re-rooted it.
func (e *Evaluator) eval(expr ast.Expr) (*gc.Value, error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return e.evalLiteral(n)
	case *ast.Identifier:
		return e.evalIdentifier(n)
	case *ast.Grouping:
		return e.eval(n.Inner)
	case *ast.Unary:
		return e.evalUnary(n)
	case *ast.Binary:
		return e.evalBinary(n)
	case *ast.Call:
		return e.evalCall(n)
	case *ast.PanicSentinel:
		return nil, runtimeErrorf(n.Line(), "internal error: PanicSentinel reached evaluator")
	default:
		return nil, runtimeErrorf(expr.Line(), "unhandled expression node")
	}
}

func (e *Evaluator) evalLiteral(n *ast.Literal) (*gc.Value, error) {
	var v *gc.Value
	switch n.Kind {
	case ast.NumberLit:
		f, err := strconv.ParseFloat(n.Payload, 64)
		if err != nil {
			return nil, runtimeErrorf(n.Line(), "malformed number literal '%s'", n.Payload)
		}
		v = e.gc.NewNumber(f)
	case ast.StringLit:
		v = e.gc.NewString(n.Payload)
	case ast.BooleanLit:
		v = e.gc.NewBoolean(n.Payload == "true")
	case ast.NilLit:
		v = e.gc.NewNil()
	default:
		return nil, runtimeErrorf(n.Line(), "unhandled literal kind")
	}
	e.gc.Hold(v)
	return v, nil
}

func (e *Evaluator) evalIdentifier(n *ast.Identifier) (*gc.Value, error) {
	v, ok := e.env.Get(n.Name)
	if !ok {
		return nil, runtimeErrorf(n.Line(), "undeclared identifier '%s'", n.Name)
	}
	e.gc.Hold(v)
	return v, nil
}

func (e *Evaluator) evalUnary(n *ast.Unary) (*gc.Value, error) {
	right, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.Minus:
		if right.Kind != gc.Number {
			return nil, runtimeErrorf(n.Line(), "unary '-' requires Number, got %s", right.Kind)
		}
		e.gc.Release(1)
		result := e.gc.NewNumber(-right.Number)
		e.gc.Hold(result)
		return result, nil
	case ast.Not:
		if right.Kind != gc.Boolean {
			return nil, runtimeErrorf(n.Line(), "unary '!' requires Boolean, got %s", right.Kind)
		}
		e.gc.Release(1)
		result := e.gc.NewBoolean(!right.Boolean)
		e.gc.Hold(result)
		return result, nil
	default:
		return nil, runtimeErrorf(n.Line(), "unhandled unary operator")
	}
}

// evalBinary evaluates left-then-right under the lazy protocol (§4.3.3 for
// and/or; both operands otherwise), holding intermediates so a GC run
// inside a nested call cannot collect them. The hold count released is 1
// for a short-circuited and/or, 2 otherwise.
func (e *Evaluator) evalBinary(n *ast.Binary) (*gc.Value, error) {
	if n.Op == ast.And || n.Op == ast.Or {
		return e.evalLogical(n)
	}
	if n.Op == ast.Forward {
		return e.evalForward(n)
	}

	left, err := e.eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}

	var result *gc.Value
	switch n.Op {
	case ast.Plus:
		if left.Kind == gc.String && right.Kind == gc.String {
			result = e.gc.NewString(left.String + right.String)
		} else if left.Kind == gc.Number && right.Kind == gc.Number {
			result = e.gc.NewNumber(left.Number + right.Number)
		} else {
			return nil, runtimeErrorf(n.Line(), "'+' requires two Numbers or two Strings")
		}
	case ast.Minus:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewNumber(left.Number - right.Number)
	case ast.Star:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewNumber(left.Number * right.Number)
	case ast.Slash:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewNumber(left.Number / right.Number)
	case ast.Mod:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewNumber(math.Mod(left.Number, right.Number))
	case ast.Less:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(left.Number < right.Number)
	case ast.LessEqual:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(left.Number <= right.Number)
	case ast.Greater:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(left.Number > right.Number)
	case ast.GreaterEqual:
		if err := requireNumbers(n.Line(), left, right); err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(left.Number >= right.Number)
	case ast.Equal:
		eq, err := isEqual(n.Line(), left, right)
		if err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(eq)
	case ast.NotEqual:
		eq, err := isEqual(n.Line(), left, right)
		if err != nil {
			return nil, err
		}
		result = e.gc.NewBoolean(!eq)
	default:
		return nil, runtimeErrorf(n.Line(), "unhandled binary operator")
	}
	e.gc.Release(2)
	e.gc.Hold(result)
	return result, nil
}

func requireNumbers(line int, left, right *gc.Value) error {
	if left.Kind != gc.Number || right.Kind != gc.Number {
		return runtimeErrorf(line, "operator requires two Numbers")
	}
	return nil
}

// isEqual compares by kind then by payload, per interpreter.c's is_equal.
// Comparing a Closure is a runtime error (§3 invariant); NaN == NaN is
// false by raw IEEE comparison, as preserved by §9's open question.
func isEqual(line int, left, right *gc.Value) (bool, error) {
	if left.Kind == gc.Closure || right.Kind == gc.Closure {
		return false, runtimeErrorf(line, "cannot compare a Closure for equality")
	}
	if left.Kind != right.Kind {
		return false, nil
	}
	switch left.Kind {
	case gc.Number:
		return left.Number == right.Number, nil
	case gc.Boolean:
		return left.Boolean == right.Boolean, nil
	case gc.String:
		return left.String == right.String, nil
	case gc.Nil:
		return true, nil
	default:
		return false, nil
	}
}

func (e *Evaluator) evalLogical(n *ast.Binary) (*gc.Value, error) {
	left, err := e.eval(n.Left)
	if err != nil {
		return nil, err
	}
	if left.Kind != gc.Boolean {
		e.gc.Release(1)
		return nil, runtimeErrorf(n.Line(), "'%s' requires Boolean operands", operatorName(n.Op))
	}
	if (n.Op == ast.And && !left.Boolean) || (n.Op == ast.Or && left.Boolean) {
		e.gc.Release(1)
		result := e.gc.NewBoolean(left.Boolean)
		e.gc.Hold(result)
		return result, nil
	}

	e.gc.Release(1)
	right, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}
	if right.Kind != gc.Boolean {
		e.gc.Release(1)
		return nil, runtimeErrorf(n.Line(), "'%s' requires Boolean operands", operatorName(n.Op))
	}
	e.gc.Release(1)
	result := e.gc.NewBoolean(right.Boolean)
	e.gc.Hold(result)
	return result, nil
}

func operatorName(op ast.Operator) string {
	if op == ast.And {
		return "and"
	}
	return "or"
}

// evalForward rewrites `left |> call(...)` into `call(left, ...)`: the
// right-hand side must already be a Call; evaluating it directly with the
// forwarded value prepended keeps actual-evaluation order left-to-right.
func (e *Evaluator) evalForward(n *ast.Binary) (*gc.Value, error) {
	call, ok := n.Right.(*ast.Call)
	if !ok {
		return nil, runtimeErrorf(n.Line(), "'|>' right-hand side must be a call")
	}
	forwarded := ast.NewCall(call.Line(), call.Name, append([]ast.Expr{n.Left}, call.Actuals...))
	return e.eval(forwarded)
}

// evalCall implements §4.3.1's nine-step call protocol.
func (e *Evaluator) evalCall(n *ast.Call) (*gc.Value, error) {
	actuals := make([]*gc.Value, 0, len(n.Actuals))
	for _, a := range n.Actuals {
		v, err := e.eval(a)
		if err != nil {
			e.gc.Release(len(actuals))
			return nil, err
		}
		actuals = append(actuals, v)
	}

	callee, ok := e.env.Get(n.Name)
	if !ok {
		e.gc.Release(len(actuals))
		return nil, runtimeErrorf(n.Line(), "undeclared identifier '%s'", n.Name)
	}
	if callee.Kind != gc.Closure {
		e.gc.Release(len(actuals))
		return nil, runtimeErrorf(n.Line(), "'%s' is not callable", n.Name)
	}
	closure := callee.Closure
	if len(closure.Formals) != len(actuals) {
		e.gc.Release(len(actuals))
		return nil, runtimeErrorf(n.Line(), "'%s' expects %d argument(s), got %d", n.Name, len(closure.Formals), len(actuals))
	}

	if e.depth >= MaxCallDepth {
		e.gc.Release(len(actuals))
		return nil, runtimeErrorf(n.Line(), "stack overflow")
	}

	snapshot := e.env.Size()
	e.env.BulkBind(closure.Formals, actuals)
	e.gc.Release(len(actuals))

	e.depth++
	f, err := e.execStmt(closure.Body)
	e.depth--
	e.env.Restore(snapshot)
	if err != nil {
		return nil, err
	}

	var result *gc.Value
	if f.returning {
		result = f.value
	} else {
		result = e.gc.NewNil()
	}
	e.gc.Mark(result)
	e.gc.Hold(result)
	return result, nil
}

// format renders a value per §4.3.4.
func (e *Evaluator) format(v *gc.Value) string {
	switch v.Kind {
	case gc.Number:
		if v.Number == math.Trunc(v.Number) {
			return strconv.FormatFloat(v.Number, 'f', 0, 64)
		}
		return strconv.FormatFloat(v.Number, 'f', 2, 64)
	case gc.Boolean:
		if v.Boolean {
			return "true"
		}
		return "false"
	case gc.Nil:
		return "nil"
	case gc.String:
		return v.String
	case gc.Closure:
		return "fun<" + v.Closure.Name + ">"
	default:
		return ""
	}
}
