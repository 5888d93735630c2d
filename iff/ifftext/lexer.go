// Package ifftext converts between binary documents and an editable text form:
//
//	form "SLOD" "0000" {
//		chunk "INFO" { int16 1 }
//		form "SKTM" "0002" {
//			chunk "NAME" { string "root" string "a" }
//			chunk "BPTR" { vec3 0 0 0  vec3 1 0 0 }
//		}
//	}
package ifftext

import (
	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_FORM = iota
	TOKEN_CHUNK
	TOKEN_TYPE
	TOKEN_BOOL
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_COMMENT
)

var typeNames = []string{
	"int8", "uint8", "int16", "uint16", "int32", "uint32",
	"float", "vec2", "vec3", "vec4", "bool", "string", "tag", "hex",
}

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`form`), getToken(TOKEN_FORM))
	lexer.Add([]byte(`chunk`), getToken(TOKEN_CHUNK))
	for _, name := range typeNames {
		lexer.Add([]byte(name), getToken(TOKEN_TYPE))
	}
	lexer.Add([]byte(`true|false`), getToken(TOKEN_BOOL))
	lexer.Add([]byte(`0x[0-9a-fA-F]+`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[\+\-]?(inf|nan)`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`"(\\.|[^"])*"`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`\{`), getToken(TOKEN_LBRACE))
	lexer.Add([]byte(`\}`), getToken(TOKEN_RBRACE))
	lexer.Add([]byte(`//[^\n]*`), getToken(TOKEN_COMMENT))
	lexer.Add([]byte(`\s+`), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

func tokenize(text []byte) ([]*lexmachine.Token, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	tokens := make([]*lexmachine.Token, 0, 64)
	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := itok.(*lexmachine.Token)
		if tok.Type == TOKEN_COMMENT {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
