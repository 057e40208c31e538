package reader

// parseState - текущее состояние автомата разбора.
type parseState int

const (
	statePrelude parseState = iota
	stateNoMessage
	stateMessageStart
	stateFullNameStart
	stateFullNameExtracted
	stateShortNameStart
	stateShortNameExtracted
	stateDateStart
	stateDateExtracted
	stateHeaderClosed
	stateMessageBodyStart
	stateMessageBodyExtracted
	stateMessageChatActionStart
	stateMessageAttachments
	stateAttachmentLink
	stateAttachmentPre
	stateMessageAttachmentsExtracted
)

var stateNames = [...]string{
	statePrelude:                     "Prelude",
	stateNoMessage:                   "NoMessage",
	stateMessageStart:                "MessageStart",
	stateFullNameStart:               "FullNameStart",
	stateFullNameExtracted:           "FullNameExtracted",
	stateShortNameStart:              "ShortNameStart",
	stateShortNameExtracted:          "ShortNameExtracted",
	stateDateStart:                   "DateStart",
	stateDateExtracted:               "DateExtracted",
	stateHeaderClosed:                "HeaderClosed",
	stateMessageBodyStart:            "MessageBodyStart",
	stateMessageBodyExtracted:        "MessageBodyExtracted",
	stateMessageChatActionStart:      "MessageChatActionStart",
	stateMessageAttachments:          "MessageAttachments",
	stateAttachmentLink:              "AttachmentLink",
	stateAttachmentPre:               "AttachmentPre",
	stateMessageAttachmentsExtracted: "MessageAttachmentsExtracted",
}

func (s parseState) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Классы и элементы разметки VkOpt.
const (
	classMessage     = "msg_item"
	classBody        = "msg_body"
	classAttachments = "attacments"
	classForwarded   = "fwd"
	classEmoji       = "emoji"
	classAttIcon     = "att_ico"
)
