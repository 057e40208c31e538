// Package term содержит помощники для работы CLI с терминалом.
package term

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// IsTerminal сообщает, подключен ли поток к терминалу.
func IsTerminal(f interface{}) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// Width возвращает ширину терминала или fallback, если поток не терминал.
func Width(f interface{}, fallback int) int {
	file, ok := f.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return fallback
	}
	w, _, err := term.GetSize(int(file.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Prompter задает пользователю вопросы да/нет.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter создает Prompter поверх произвольных потоков.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm печатает вопрос и ждет ответа. Согласием считаются "y", "yes", "д" и "да".
func (p *Prompter) Confirm(question string) (bool, error) {
	if _, err := io.WriteString(p.out, question+" [y/N]: "); err != nil {
		return false, xerrors.Errorf("failed to write prompt: %w", err)
	}
	answer, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && answer != "") {
		return false, xerrors.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "д", "да":
		return true, nil
	default:
		return false, nil
	}
}
