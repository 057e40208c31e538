package domain

import "strings"

// Message представляет одно сообщение из экспорта, собранное из событий парсера.
type Message struct {
	Level     uint32 `json:"level"`
	FullName  string `json:"full_name"`
	ShortName string `json:"short_name"`
	// Date хранится в исходном виде, например "2018.01.21 12:00:00".
	Date        string       `json:"date,omitempty"`
	Body        string       `json:"body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Forwarded содержит пересланные сообщения, вложенные в это.
	Forwarded []Message `json:"forwarded,omitempty"`
}

// IsChatAction сообщает, что сообщение - служебное уведомление без текста и вложений.
func (m Message) IsChatAction() bool {
	return m.Body == "" && len(m.Attachments) == 0 && len(m.Forwarded) == 0
}

// ParsedChat - результат разбора одного файла экспорта.
type ParsedChat struct {
	Source   string    `json:"source"`
	Messages []Message `json:"messages"`
	// Text - тела принятых сообщений, разделенные разделителем.
	Text string `json:"text"`
}

// Participant - автор сообщений в чате.
// Это наша внутренняя модель, в разметке такой сущности нет.
type Participant struct {
	ShortName    string `json:"short_name"`
	FullName     string `json:"full_name"`
	MessageCount int    `json:"message_count"`
}

// FilterOptions описывает фильтры, которые пользователь задает в CLI, API или боте.
// Проверка и разбор значений выполняется в пакете filter.
type FilterOptions struct {
	// OnlyIncludeNames - разрешенные короткие имена (id...). Несовместимо с ExcludeNames.
	OnlyIncludeNames []string `json:"only_include_names,omitempty"`
	// ExcludeNames - короткие имена, сообщения которых исключаются.
	ExcludeNames []string `json:"exclude_names,omitempty"`
	// Since - минимальная дата сообщения в формате "2006.01.02 15:04:05".
	Since string `json:"since_date,omitempty"`
	// MaxDepth - максимальная глубина пересланных сообщений, nil снимает ограничение.
	// 0 оставляет только сообщения верхнего уровня.
	MaxDepth *int `json:"max_depth,omitempty"`
}

// ParseOptions - фильтры и параметры текстового вывода для одного разбора.
type ParseOptions struct {
	FilterOptions
	// Delimiter добавляется после тела каждого сообщения. nil означает "\n",
	// явная пустая строка склеивает тела без разделителя.
	Delimiter *string `json:"text_delimiter,omitempty"`
}

// DefaultDelimiter разделяет тела сообщений, если разделитель не задан.
const DefaultDelimiter = "\n"

// TextDelimiter возвращает указатель на разделитель для ParseOptions.Delimiter.
func TextDelimiter(s string) *string {
	return &s
}

// EffectiveDelimiter возвращает заданный разделитель или DefaultDelimiter.
func (o ParseOptions) EffectiveDelimiter() string {
	if o.Delimiter == nil {
		return DefaultDelimiter
	}
	return *o.Delimiter
}

// ConversionResult - итог обработки набора файлов.
type ConversionResult struct {
	// Chats идут в порядке входных файлов.
	Chats        []ParsedChat  `json:"chats"`
	Participants []Participant `json:"participants"`
}

// Text склеивает тексты всех чатов в порядке входных файлов.
func (r *ConversionResult) Text() string {
	var b strings.Builder
	for _, c := range r.Chats {
		b.WriteString(c.Text)
	}
	return b.String()
}

// MessageCount возвращает количество сообщений верхнего уровня во всех чатах.
func (r *ConversionResult) MessageCount() int {
	n := 0
	for _, c := range r.Chats {
		n += len(c.Messages)
	}
	return n
}

// AllMessages возвращает сообщения верхнего уровня всех чатов подряд.
func (r *ConversionResult) AllMessages() []Message {
	all := make([]Message, 0, r.MessageCount())
	for _, c := range r.Chats {
		all = append(all, c.Messages...)
	}
	return all
}
