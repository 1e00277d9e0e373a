package lexer

import (
	"bytes"
	"testing"

	"github.com/aledsdavies/lotus/internal/diagnostics"
	"github.com/aledsdavies/lotus/internal/token"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, source string) ([]token.Token, *diagnostics.Reporter) {
	t.Helper()
	var buf bytes.Buffer
	diag := diagnostics.New(&buf, false)
	diag.SetMinLevel(diagnostics.Info)
	return New(source, diag).ScanTokens(), diag
}

func types(tokens []token.Token) []token.Type {
	out := make([]token.Type, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestScanPunctuationAndOperators(t *testing.T) {
	tokens, diag := scan(t, "(){}[],;:.+-*/%")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Equal(t, []token.Type{
		token.LeftParen, token.RightParen, token.LeftBrace, token.RightBrace,
		token.LeftBracket, token.RightBracket, token.Comma, token.Semicolon,
		token.Colon, token.Dot, token.Plus, token.Minus, token.Star, token.Slash,
		token.Percent, token.End,
	}, types(tokens))
}

func TestScanCompoundOperatorsPreferLongestMatch(t *testing.T) {
	tokens, _ := scan(t, "!= == => <= >= -> |> ! = < > |")
	require.Equal(t, []token.Type{
		token.BangEqual, token.EqualEqual, token.FatArrow, token.LessEqual,
		token.GreaterEqual, token.Arrow, token.PipeGt, token.Bang, token.Equal,
		token.Less, token.Greater, token.Pipe, token.End,
	}, types(tokens))
}

func TestScanLineCommentRunsToEndOfLine(t *testing.T) {
	tokens, _ := scan(t, "let x = 1; // trailing\nlet y = 2;")
	require.NotContains(t, types(tokens), token.Slash)
}

func TestScanStringLiteral(t *testing.T) {
	tokens, diag := scan(t, `"hello world"`)
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Len(t, tokens, 2)
	require.Equal(t, token.String, tokens[0].Type)
	require.Equal(t, "hello world", tokens[0].Literal)
}

func TestScanStringSpanningLinesTracksLineNumber(t *testing.T) {
	tokens, diag := scan(t, "\"line1\nline2\" true")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Equal(t, token.String, tokens[0].Type)
	require.Equal(t, 1, tokens[0].Line)
	require.Equal(t, 2, tokens[1].Line)
}

func TestScanUnterminatedStringIsError(t *testing.T) {
	tokens, diag := scan(t, `"never closed`)
	require.Equal(t, 1, diag.Count(diagnostics.Error))
	require.Equal(t, []token.Type{token.End}, types(tokens))
}

func TestScanNumberLiterals(t *testing.T) {
	tokens, diag := scan(t, "42 3.14")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Equal(t, "42", tokens[0].Lexeme)
	require.Equal(t, "3.14", tokens[1].Lexeme)
}

func TestScanMalformedNumberIsError(t *testing.T) {
	_, diag := scan(t, "3.")
	require.Equal(t, 1, diag.Count(diagnostics.Error))
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	tokens, _ := scan(t, "let x_1 = fun if else true false nil print return and or match with")
	require.Equal(t, []token.Type{
		token.Let, token.Identifier, token.Equal, token.Fun, token.If, token.Else,
		token.True, token.False, token.Nil, token.Print, token.Return, token.And,
		token.Or, token.Match, token.With, token.End,
	}, types(tokens))
}

func TestScanUnknownCharacterIsWarningAndContinues(t *testing.T) {
	tokens, diag := scan(t, "let x = 1 @ true;")
	require.Equal(t, 0, diag.Count(diagnostics.Error))
	require.Equal(t, 1, diag.Count(diagnostics.Warning))
	require.Contains(t, types(tokens), token.True)
}

func TestScanEmptySourceYieldsOnlyEnd(t *testing.T) {
	tokens, _ := scan(t, "")
	require.Equal(t, []token.Type{token.End}, types(tokens))
}
