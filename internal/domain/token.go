package domain

import "strings"

// TokenKind определяет вид лексемы, которую отдает источник токенов.
type TokenKind int

const (
	// TokenStartTag - открывающий тег, например <div class="msg_item">.
	TokenStartTag TokenKind = iota
	// TokenText - текст между тегами.
	TokenText
	// TokenSelfClosingTag - самозакрывающийся тег, например <br/>.
	TokenSelfClosingTag
	// TokenEndTag - закрывающий тег.
	TokenEndTag
	// TokenEOF - конец потока.
	TokenEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokenStartTag:
		return "StartTag"
	case TokenText:
		return "Text"
	case TokenSelfClosingTag:
		return "SelfClosingTag"
	case TokenEndTag:
		return "EndTag"
	case TokenEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Attr - пара ключ/значение атрибута тега. Значение уже раскодировано.
type Attr struct {
	Key string
	Val string
}

// Token - одна лексема разметки.
type Token struct {
	Kind TokenKind
	// Name - имя элемента в нижнем регистре (пусто для текста и EOF).
	Name  string
	Attrs []Attr
	// Raw - исходные байты лексемы без раскодирования сущностей.
	Raw string
	// Text - раскодированный текст, заполняется только для TokenText.
	Text string
}

// Attr возвращает значение атрибута по ключу.
func (t Token) Attr(key string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttrs сообщает, есть ли у тега хотя бы один атрибут.
func (t Token) HasAttrs() bool {
	return len(t.Attrs) > 0
}

// RawContains проверяет вхождение подстроки в исходные байты лексемы.
func (t Token) RawContains(sub string) bool {
	return strings.Contains(t.Raw, sub)
}

// HasClass проверяет, содержит ли атрибут class указанный класс целиком.
func (t Token) HasClass(class string) bool {
	v, ok := t.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// IsTag проверяет, что лексема - открывающий или самозакрывающийся тег с указанным именем.
func (t Token) IsTag(name string) bool {
	return (t.Kind == TokenStartTag || t.Kind == TokenSelfClosingTag) && t.Name == name
}

// IsEndTag проверяет, что лексема - закрывающий тег с указанным именем.
func (t Token) IsEndTag(name string) bool {
	return t.Kind == TokenEndTag && t.Name == name
}
