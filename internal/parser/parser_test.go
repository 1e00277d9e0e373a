package parser

import (
	"bytes"
	"testing"

	"github.com/aledsdavies/lotus/internal/ast"
	"github.com/aledsdavies/lotus/internal/diagnostics"
	"github.com/aledsdavies/lotus/internal/lexer"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, source string) ([]ast.Stmt, *diagnostics.Reporter) {
	t.Helper()
	var buf bytes.Buffer
	diag := diagnostics.New(&buf, false)
	diag.SetMinLevel(diagnostics.Info)
	tokens := lexer.New(source, diag).ScanTokens()
	stmts := New(tokens, diag).Parse()
	return stmts, diag
}

func TestParseLetDeclaration(t *testing.T) {
	stmts, diag := parse(t, "let x = 1 + 2;")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Len(t, stmts, 1)
	decl := stmts[0].(*ast.Declaration)
	require.Equal(t, "x", decl.Name)
	require.IsType(t, &ast.Binary{}, decl.E)
}

func TestParseFunctionWithFormals(t *testing.T) {
	stmts, diag := parse(t, "fun add(a, b) { return a + b; }")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	fn := stmts[0].(*ast.Function)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Formals)
	require.IsType(t, &ast.Block{}, fn.Body)
}

func TestParseAssignmentVsExpressionStatement(t *testing.T) {
	stmts, diag := parse(t, "x = 1; foo();")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.IsType(t, &ast.Assignment{}, stmts[0])
	exprStmt := stmts[1].(*ast.ExprStmt)
	require.IsType(t, &ast.Call{}, exprStmt.E)
}

func TestParseIfWithOptionalElse(t *testing.T) {
	stmts, diag := parse(t, "if (true) print 1; if (false) print 2; else print 3;")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	first := stmts[0].(*ast.If)
	require.Nil(t, first.Else)
	second := stmts[1].(*ast.If)
	require.NotNil(t, second.Else)
}

func TestParsePrecedenceClimbing(t *testing.T) {
	stmts, diag := parse(t, "print 1 + 2 * 3;")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	printStmt := stmts[0].(*ast.Print)
	top := printStmt.E.(*ast.Binary)
	require.Equal(t, ast.Plus, top.Op)
	require.IsType(t, &ast.Literal{}, top.Left)
	right := top.Right.(*ast.Binary)
	require.Equal(t, ast.Star, right.Op)
}

func TestParseForwardingIsLeftAssociative(t *testing.T) {
	stmts, diag := parse(t, "print 3 |> inc() |> dbl();")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	top := stmts[0].(*ast.Print).E.(*ast.Binary)
	require.Equal(t, ast.Forward, top.Op)
	require.IsType(t, &ast.Call{}, top.Right)
	require.IsType(t, &ast.Binary{}, top.Left)
}

func TestParseCallWithActuals(t *testing.T) {
	stmts, diag := parse(t, "print add(1, 2, 3);")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	call := stmts[0].(*ast.Print).E.(*ast.Call)
	require.Equal(t, "add", call.Name)
	require.Len(t, call.Actuals, 3)
}

func TestParseErrorRecoversAndLocalizesSingleStatement(t *testing.T) {
	stmts, diag := parse(t, "let x = ; let y = 2;")
	require.Equal(t, 1, diag.Count(diagnostics.Error))
	require.Len(t, stmts, 1)
	decl := stmts[0].(*ast.Declaration)
	require.Equal(t, "y", decl.Name)
}

func TestParseErrorAtEndIsReportedOnce(t *testing.T) {
	_, diag := parse(t, "let x =")
	require.Equal(t, 1, diag.Count(diagnostics.Error))
}

func TestParseResultNeverContainsPanicSentinel(t *testing.T) {
	stmts, _ := parse(t, "let x = ; print 1;")
	for _, s := range stmts {
		es, ok := s.(*ast.ExprStmt)
		if !ok {
			continue
		}
		_, isSentinel := es.E.(*ast.PanicSentinel)
		require.False(t, isSentinel)
	}
}

func TestParseBlockScopesNestedDeclarations(t *testing.T) {
	stmts, diag := parse(t, "{ let a = 2; print a; }")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	block := stmts[0].(*ast.Block)
	require.Len(t, block.Stmts, 2)
}
