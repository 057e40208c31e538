package services

import (
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// ExtractionServiceImpl реализует интерфейс ExtractionService.
type ExtractionServiceImpl struct{}

// NewExtractionService создает новый экземпляр ExtractionServiceImpl.
func NewExtractionService() ports.ExtractionService {
	return &ExtractionServiceImpl{}
}

// ExtractParticipants собирает авторов сообщений верхнего уровня в порядке первого появления.
// Авторы пересланных сообщений участниками чата не считаются.
func (s *ExtractionServiceImpl) ExtractParticipants(chats ...*domain.ParsedChat) ([]domain.Participant, error) {
	var participants []domain.Participant
	// Индекс участника по короткому имени
	index := make(map[string]int)

	for _, chat := range chats {
		if chat == nil {
			continue
		}
		for _, msg := range chat.Messages {
			if msg.ShortName == "" {
				continue
			}
			if i, ok := index[msg.ShortName]; ok {
				participants[i].MessageCount++
				// Полное имя могло смениться, берем последнее
				if msg.FullName != "" {
					participants[i].FullName = msg.FullName
				}
				continue
			}
			index[msg.ShortName] = len(participants)
			participants = append(participants, domain.Participant{
				ShortName:    msg.ShortName,
				FullName:     msg.FullName,
				MessageCount: 1,
			})
		}
	}

	return participants, nil
}
