package domain

import "fmt"

// EventKind - тип семантического события, которое парсер отдает редьюсеру.
type EventKind int

const (
	EventStart EventKind = iota
	EventFullNameExtracted
	EventShortNameExtracted
	EventDateExtracted
	EventBodyPartExtracted
	EventAttachmentExtracted
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "Start"
	case EventFullNameExtracted:
		return "FullNameExtracted"
	case EventShortNameExtracted:
		return "ShortNameExtracted"
	case EventDateExtracted:
		return "DateExtracted"
	case EventBodyPartExtracted:
		return "BodyPartExtracted"
	case EventAttachmentExtracted:
		return "AttachmentExtracted"
	default:
		return "Unknown"
	}
}

// AttachmentKind - вид вложения.
type AttachmentKind int

const (
	AttachmentDoc AttachmentKind = iota
	AttachmentPhoto
	AttachmentVideo
	AttachmentAudio
	AttachmentSticker
	AttachmentLocation
	AttachmentWall
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentDoc:
		return "Doc"
	case AttachmentPhoto:
		return "Photo"
	case AttachmentVideo:
		return "Video"
	case AttachmentAudio:
		return "Audio"
	case AttachmentSticker:
		return "Sticker"
	case AttachmentLocation:
		return "Location"
	case AttachmentWall:
		return "Wall"
	default:
		return "Unknown"
	}
}

// MarshalText позволяет сериализовать вид вложения строкой в JSON.
func (k AttachmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText разбирает вид вложения из строки, записанной MarshalText.
func (k *AttachmentKind) UnmarshalText(text []byte) error {
	for c := AttachmentDoc; c <= AttachmentWall; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown attachment kind %q", text)
}

// Attachment - вложение сообщения.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	URL  string         `json:"url,omitempty"`
	// VkObj - идентификатор объекта из квадратных скобок в начале подписи, например "photo1_2".
	VkObj       string `json:"vk_obj,omitempty"`
	Description string `json:"description"`
}

// MessageEvent - событие разбора сообщения.
// Поле Text заполняется для событий имени, даты и фрагментов тела,
// Attachment - только для EventAttachmentExtracted.
type MessageEvent struct {
	Kind EventKind
	// Level - глубина вложенности пересланного сообщения, 0 для сообщений верхнего уровня.
	Level      uint32
	Text       string
	Attachment Attachment
}

// String повторяет отладочный вид событий, удобный для сравнения в тестах.
func (e MessageEvent) String() string {
	switch e.Kind {
	case EventStart:
		return fmt.Sprintf("Start(%d)", e.Level)
	case EventAttachmentExtracted:
		return fmt.Sprintf("AttachmentExtracted{%s, %q, %q, %q}",
			e.Attachment.Kind, e.Attachment.URL, e.Attachment.VkObj, e.Attachment.Description)
	default:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	}
}

// StartEvent создает событие начала сообщения.
func StartEvent(level uint32) MessageEvent {
	return MessageEvent{Kind: EventStart, Level: level}
}

// TextEvent создает событие с текстовой нагрузкой.
func TextEvent(kind EventKind, level uint32, text string) MessageEvent {
	return MessageEvent{Kind: kind, Level: level, Text: text}
}

// AttachmentEvent создает событие вложения.
func AttachmentEvent(level uint32, att Attachment) MessageEvent {
	return MessageEvent{Kind: EventAttachmentExtracted, Level: level, Attachment: att}
}

// EventResult - вердикт редьюсера: продолжить выдачу событий текущего сообщения
// или пропустить его вместе со всеми вложенными пересланными сообщениями.
type EventResult[A any] struct {
	Acc  A
	Skip bool
}

// Consumed - событие обработано, выдача продолжается.
func Consumed[A any](acc A) EventResult[A] {
	return EventResult[A]{Acc: acc}
}

// SkipMessage - оставшиеся события текущего сообщения и его пересланных сообщений не нужны.
func SkipMessage[A any](acc A) EventResult[A] {
	return EventResult[A]{Acc: acc, Skip: true}
}

// Reducer сворачивает события в аккумулятор.
type Reducer[A any] func(acc A, event MessageEvent) EventResult[A]
