package reader

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrMalformed - последовательность лексем не соответствует разметке экспорта.
	ErrMalformed = errors.New("malformed export markup")
	// ErrUnknownAttachment - класс иконки вложения не совпал ни с одним известным суффиксом.
	ErrUnknownAttachment = errors.New("unknown attachment kind")
)

// ParseError - фатальная структурная ошибка разбора.
// Событие, на котором произошла ошибка, редьюсеру не передается.
type ParseError struct {
	State string
	// Token - исходные байты лексемы, на которой остановился разбор.
	Token string
	err   error
	frame xerrors.Frame
}

func newParseError(state parseState, token string, err error) *ParseError {
	return &ParseError{
		State: state.String(),
		Token: token,
		err:   err,
		frame: xerrors.Caller(1),
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprint(e)
}

// FormatError печатает состояние автомата и, с флагом %+v, место возникновения ошибки.
func (e *ParseError) FormatError(p xerrors.Printer) error {
	p.Printf("parse error in state %s at %q", e.State, e.Token)
	e.frame.Format(p)
	return e.err
}

func (e *ParseError) Format(s fmt.State, v rune) {
	xerrors.FormatError(e, s, v)
}

func (e *ParseError) Unwrap() error {
	return e.err
}
