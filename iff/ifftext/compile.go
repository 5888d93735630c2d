package ifftext

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"

	"github.com/swgtools/swg_asset_browser/iff"
)

type parser struct {
	tokens []*lexmachine.Token
	pos    int
	w      *iff.Writer
}

// Compile assembles the text form into a binary document with a single root form.
func Compile(text []byte, opts ...iff.Option) ([]byte, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, w: iff.NewWriter(opts...)}
	if len(tokens) == 0 {
		return nil, errors.Errorf("Empty document")
	}
	if tokens[0].Type != TOKEN_FORM {
		return nil, p.errorf(tokens[0], "document must start with a form")
	}
	if err := p.node(); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok != nil {
		return nil, p.errorf(tok, "unexpected data after root form")
	}
	return p.w.Bytes()
}

func (p *parser) errorf(tok *lexmachine.Token, format string, args ...interface{}) error {
	return errors.Errorf("line %v (%q): %s", tok.StartLine, string(tok.Lexeme), fmt.Sprintf(format, args...))
}

func (p *parser) peek() *lexmachine.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return p.tokens[p.pos]
}

func (p *parser) next(expected int, what string) (*lexmachine.Token, error) {
	tok := p.peek()
	if tok == nil {
		last := p.tokens[len(p.tokens)-1]
		return nil, errors.Errorf("line %v: unexpected end of text, expected %s", last.EndLine, what)
	}
	if tok.Type != expected {
		return nil, p.errorf(tok, "expected %s", what)
	}
	p.pos++
	return tok, nil
}

func (p *parser) tag(what string) (iff.Tag, error) {
	tok, err := p.next(TOKEN_STRING, what)
	if err != nil {
		return iff.Tag{}, err
	}
	s, err := strconv.Unquote(string(tok.Lexeme))
	if err != nil {
		return iff.Tag{}, p.errorf(tok, "bad string literal")
	}
	t, err := iff.ParseTag(s)
	if err != nil {
		return t, p.errorf(tok, "%v", err)
	}
	return t, nil
}

func (p *parser) node() error {
	tok := p.peek()
	p.pos++
	switch tok.Type {
	case TOKEN_FORM:
		tag, err := p.tag("form tag")
		if err != nil {
			return err
		}
		version, err := p.tag("form version")
		if err != nil {
			return err
		}
		if _, err := p.next(TOKEN_LBRACE, "'{'"); err != nil {
			return err
		}
		p.w.BeginForm(tag, version)
		for {
			child := p.peek()
			if child == nil {
				return errors.Errorf("form %q is not closed", tag.String())
			}
			if child.Type == TOKEN_RBRACE {
				p.pos++
				break
			}
			if child.Type != TOKEN_FORM && child.Type != TOKEN_CHUNK {
				return p.errorf(child, "expected form or chunk inside form %q", tag.String())
			}
			if err := p.node(); err != nil {
				return err
			}
		}
		p.w.EndForm()
	case TOKEN_CHUNK:
		tag, err := p.tag("chunk tag")
		if err != nil {
			return err
		}
		if _, err := p.next(TOKEN_LBRACE, "'{'"); err != nil {
			return err
		}
		p.w.BeginChunk(tag)
		for {
			field := p.peek()
			if field == nil {
				return errors.Errorf("chunk %q is not closed", tag.String())
			}
			if field.Type == TOKEN_RBRACE {
				p.pos++
				break
			}
			if err := p.field(); err != nil {
				return errors.Wrapf(err, "chunk %q", tag.String())
			}
		}
		p.w.EndChunk()
	default:
		return p.errorf(tok, "expected form or chunk")
	}
	return nil
}

func (p *parser) number() (*lexmachine.Token, string, error) {
	tok, err := p.next(TOKEN_NUMBER, "number")
	if err != nil {
		return nil, "", err
	}
	return tok, string(tok.Lexeme), nil
}

func (p *parser) integer(bits int, signed bool) (int64, uint64, error) {
	tok, lit, err := p.number()
	if err != nil {
		return 0, 0, err
	}
	if signed {
		v, err := strconv.ParseInt(lit, 0, bits)
		if err != nil {
			return 0, 0, p.errorf(tok, "bad int%d", bits)
		}
		return v, 0, nil
	}
	v, err := strconv.ParseUint(lit, 0, bits)
	if err != nil {
		return 0, 0, p.errorf(tok, "bad uint%d", bits)
	}
	return 0, v, nil
}

func (p *parser) float() (float32, error) {
	tok, lit, err := p.number()
	if err != nil {
		return 0, err
	}
	switch strings.TrimPrefix(lit, "+") {
	case "inf":
		return float32(math.Inf(1)), nil
	case "-inf":
		return float32(math.Inf(-1)), nil
	case "nan", "-nan":
		return float32(math.NaN()), nil
	}
	if strings.HasPrefix(lit, "0x") {
		v, err := strconv.ParseUint(lit, 0, 32)
		if err != nil {
			return 0, p.errorf(tok, "bad float bits")
		}
		return math.Float32frombits(uint32(v)), nil
	}
	v, err := strconv.ParseFloat(lit, 32)
	if err != nil {
		return 0, p.errorf(tok, "bad float")
	}
	return float32(v), nil
}

func (p *parser) floats(dst []float32) error {
	for i := range dst {
		f, err := p.float()
		if err != nil {
			return err
		}
		dst[i] = f
	}
	return nil
}

func (p *parser) str() (*lexmachine.Token, string, error) {
	tok, err := p.next(TOKEN_STRING, "string")
	if err != nil {
		return nil, "", err
	}
	s, err := strconv.Unquote(string(tok.Lexeme))
	if err != nil {
		return nil, "", p.errorf(tok, "bad string literal")
	}
	return tok, s, nil
}

func (p *parser) field() error {
	typ, err := p.next(TOKEN_TYPE, "field type")
	if err != nil {
		return err
	}
	w := p.w
	switch string(typ.Lexeme) {
	case "int8":
		v, _, err := p.integer(8, true)
		if err != nil {
			return err
		}
		w.WriteInt8(int8(v))
	case "uint8":
		_, v, err := p.integer(8, false)
		if err != nil {
			return err
		}
		w.WriteUint8(uint8(v))
	case "int16":
		v, _, err := p.integer(16, true)
		if err != nil {
			return err
		}
		w.WriteInt16(int16(v))
	case "uint16":
		_, v, err := p.integer(16, false)
		if err != nil {
			return err
		}
		w.WriteUint16(uint16(v))
	case "int32":
		v, _, err := p.integer(32, true)
		if err != nil {
			return err
		}
		w.WriteInt32(int32(v))
	case "uint32":
		_, v, err := p.integer(32, false)
		if err != nil {
			return err
		}
		w.WriteUint32(uint32(v))
	case "float":
		f, err := p.float()
		if err != nil {
			return err
		}
		w.WriteFloat(f)
	case "vec2":
		var v [2]float32
		if err := p.floats(v[:]); err != nil {
			return err
		}
		w.WriteVec2(v)
	case "vec3":
		var v [3]float32
		if err := p.floats(v[:]); err != nil {
			return err
		}
		w.WriteVec3(v)
	case "vec4":
		var v [4]float32
		if err := p.floats(v[:]); err != nil {
			return err
		}
		w.WriteVec4(v)
	case "bool":
		tok, err := p.next(TOKEN_BOOL, "true or false")
		if err != nil {
			return err
		}
		w.WriteBool(string(tok.Lexeme) == "true")
	case "string":
		_, s, err := p.str()
		if err != nil {
			return err
		}
		w.WriteString(s)
	case "tag":
		t, err := p.tag("tag")
		if err != nil {
			return err
		}
		w.WriteTag(t)
	case "hex":
		tok, s, err := p.str()
		if err != nil {
			return err
		}
		b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return p.errorf(tok, "bad hex data")
		}
		w.WriteBytes(b)
	}
	return nil
}
