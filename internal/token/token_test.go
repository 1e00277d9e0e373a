package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeStringKnownAndUnknown(t *testing.T) {
	require.Equal(t, "PLUS", Plus.String())
	require.Equal(t, "EQUAL_EQUAL", EqualEqual.String())
	require.Equal(t, "UNKNOWN", Type(-1).String())
}

func TestKeywordsCoverEveryReservedWord(t *testing.T) {
	want := map[string]Type{
		"and": And, "or": Or, "if": If, "else": Else, "fun": Fun, "nil": Nil,
		"print": Print, "return": Return, "let": Let, "true": True,
		"false": False, "match": Match, "with": With,
	}
	require.Equal(t, want, Keywords)
}

func TestNewUsesLexemeAsLiteral(t *testing.T) {
	tok := New(Plus, "+", 3)
	require.Equal(t, "+", tok.Lexeme)
	require.Equal(t, "+", tok.Literal)
	require.Equal(t, 3, tok.Line)
}

func TestNewWithLiteralKeepsLexemeAndLiteralDistinct(t *testing.T) {
	tok := NewWithLiteral(String, `"hi"`, "hi", 1)
	require.Equal(t, `"hi"`, tok.Lexeme)
	require.Equal(t, "hi", tok.Literal)
}

func TestTokenStringRendersTypeLexemeAndLine(t *testing.T) {
	tok := New(Number, "3.14", 12)
	require.Equal(t, "NUMBER '3.14' @12", tok.String())
}
