package reader

import (
	"fmt"
	"strings"

	"vkopt-message-parser/internal/domain"
)

// attachmentSuffixes сопоставляет последние четыре байта класса иконки с видом вложения.
var attachmentSuffixes = map[string]domain.AttachmentKind{
	"_doc": domain.AttachmentDoc,
	"udio": domain.AttachmentAudio,
	"ideo": domain.AttachmentVideo,
	"hoto": domain.AttachmentPhoto,
	"cker": domain.AttachmentSticker,
	"_geo": domain.AttachmentLocation,
	"wall": domain.AttachmentWall,
}

const suffixLen = 4

// ClassifyAttachment определяет вид вложения по атрибуту class иконки, например "att_ico att_photo".
func ClassifyAttachment(class string) (domain.AttachmentKind, error) {
	class = strings.TrimSpace(class)
	if len(class) < suffixLen {
		return 0, fmt.Errorf("%w: class %q is too short", ErrUnknownAttachment, class)
	}
	kind, ok := attachmentSuffixes[class[len(class)-suffixLen:]]
	if !ok {
		return 0, fmt.Errorf("%w: class %q", ErrUnknownAttachment, class)
	}
	return kind, nil
}

// SplitCaption отделяет идентификатор объекта в квадратных скобках от описания вложения.
// "[photo1_2] Закат" -> ("photo1_2", "Закат"). Без скобки в начале все подпись - описание.
func SplitCaption(caption string) (vkObj, description string) {
	if !strings.HasPrefix(caption, "[") {
		return "", caption
	}
	end := strings.IndexByte(caption, ']')
	if end < 0 {
		return "", caption
	}
	return caption[1:end], strings.TrimSpace(caption[end+1:])
}
