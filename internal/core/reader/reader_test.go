package reader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkopt-message-parser/internal/adapters/tokenizer"
	"vkopt-message-parser/internal/core/reader"
	"vkopt-message-parser/internal/domain"
)

func acceptAll(domain.MessageEvent) bool { return true }

func readEvents(t *testing.T, fixture string) []string {
	t.Helper()
	return readEventsSkipping(t, fixture, acceptAll)
}

// readEventsSkipping записывает все доставленные события и пропускает сообщение,
// если accept вернул false.
func readEventsSkipping(t *testing.T, fixture string, accept func(domain.MessageEvent) bool) []string {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	defer f.Close()

	events, err := foldStrings(tokenizer.New(f), accept)
	require.NoError(t, err)
	return events
}

func foldStrings(src *tokenizer.HTMLTokenSource, accept func(domain.MessageEvent) bool) ([]string, error) {
	return reader.Fold(src, []string(nil), func(acc []string, ev domain.MessageEvent) domain.EventResult[[]string] {
		acc = append(acc, ev.String())
		if accept(ev) {
			return domain.Consumed(acc)
		}
		return domain.SkipMessage(acc)
	})
}

func foldHTML(markup string) ([]string, error) {
	return foldStrings(tokenizer.New(strings.NewReader(markup)), acceptAll)
}

func TestFold_Messages(t *testing.T) {
	t.Run("извлекает поля, тело и служебные уведомления", func(t *testing.T) {
		events := readEvents(t, "messages.html")

		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("Denis Ivanov")`,
			`ShortNameExtracted("id1")`,
			`DateExtracted("2018.01.21 12:00:00")`,
			`BodyPartExtracted("Hi Denko")`,
			`BodyPartExtracted("\n")`,
			`BodyPartExtracted("\n")`,
			`BodyPartExtracted("I’m drinking jasmine tea right now")`,
			`Start(0)`,
			`FullNameExtracted("Alice Petrova")`,
			`ShortNameExtracted("alice")`,
			`DateExtracted("2018.01.21 23:59:59")`,
			`BodyPartExtracted("Tom & Jerry [not a mention]")`,
			`Start(0)`,
			`FullNameExtracted("Denis Ivanov")`,
			`ShortNameExtracted("id1")`,
			`DateExtracted("2018.01.22 09:15:00")`,
			`Start(0)`,
			`FullNameExtracted("Bob")`,
			`ShortNameExtracted("id3")`,
			`DateExtracted("2018.01.22 10:00:00")`,
			`BodyPartExtracted("🤔")`,
			`BodyPartExtracted("🤔")`,
			`BodyPartExtracted("🤔")`,
		}, events)
	})

	t.Run("перенос строки и эмодзи идут по порядку перед следующим сообщением", func(t *testing.T) {
		events := readEvents(t, "emoji.html")

		require.GreaterOrEqual(t, len(events), 8)
		assert.Equal(t, []string{
			`BodyPartExtracted("Hmm")`,
			`BodyPartExtracted("\n")`,
			`BodyPartExtracted("🤔")`,
			`Start(0)`,
		}, events[4:8])
	})

	t.Run("порядок полей внутри каждого сообщения", func(t *testing.T) {
		for _, fixture := range []string{"messages.html", "forwarded.html", "attachments.html"} {
			f, err := os.Open(filepath.Join("testdata", fixture))
			require.NoError(t, err)

			var kinds [][]domain.EventKind
			_, err = reader.Fold(tokenizer.New(f), 0, func(acc int, ev domain.MessageEvent) domain.EventResult[int] {
				if ev.Kind == domain.EventStart {
					kinds = append(kinds, nil)
				}
				kinds[len(kinds)-1] = append(kinds[len(kinds)-1], ev.Kind)
				return domain.Consumed(acc)
			})
			f.Close()
			require.NoError(t, err, fixture)

			for i, msg := range kinds {
				require.GreaterOrEqual(t, len(msg), 3, "%s: message %d", fixture, i)
				assert.Equal(t, domain.EventStart, msg[0])
				assert.Equal(t, domain.EventFullNameExtracted, msg[1])
				assert.Equal(t, domain.EventShortNameExtracted, msg[2])
				for j, k := range msg[3:] {
					if k == domain.EventDateExtracted {
						assert.Equal(t, 0, j, "%s: date must follow short name in message %d", fixture, i)
					}
				}
			}
		}
	})
}

func TestFold_Forwarded(t *testing.T) {
	t.Run("уровни пересылки растут на единицу и возвращаются", func(t *testing.T) {
		var levels []uint32
		events := readEventsSkipping(t, "forwarded.html", func(ev domain.MessageEvent) bool {
			if ev.Kind == domain.EventStart {
				levels = append(levels, ev.Level)
			}
			return true
		})

		assert.Equal(t, []uint32{0, 1, 2, 3, 1, 0}, levels)
		assert.Contains(t, events, `BodyPartExtracted("level three")`)
	})

	t.Run("уровни совпадают с деревом документа", func(t *testing.T) {
		f, err := os.Open(filepath.Join("testdata", "forwarded.html"))
		require.NoError(t, err)
		defer f.Close()
		doc, err := goquery.NewDocumentFromReader(f)
		require.NoError(t, err)

		var want []uint32
		doc.Find("div.msg_item").Each(func(_ int, s *goquery.Selection) {
			want = append(want, uint32(s.ParentsFiltered("div.fwd").Length()))
		})

		var got []uint32
		readEventsSkipping(t, "forwarded.html", func(ev domain.MessageEvent) bool {
			if ev.Kind == domain.EventStart {
				got = append(got, ev.Level)
			}
			return true
		})
		assert.Equal(t, want, got)
	})

	t.Run("пропуск на первом уровне скрывает вложенные пересылки", func(t *testing.T) {
		events := readEventsSkipping(t, "forwarded.html", func(ev domain.MessageEvent) bool {
			return !(ev.Kind == domain.EventShortNameExtracted && ev.Text == "id11")
		})

		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("Root")`,
			`ShortNameExtracted("id10")`,
			`DateExtracted("2019.03.01 10:00:00")`,
			`BodyPartExtracted("level zero")`,
			`Start(1)`,
			`FullNameExtracted("First")`,
			`ShortNameExtracted("id11")`,
			`Start(1)`,
			`FullNameExtracted("Sibling")`,
			`ShortNameExtracted("id14")`,
			`DateExtracted("2019.02.02 10:00:00")`,
			`BodyPartExtracted("level one sibling")`,
			`Start(0)`,
			`FullNameExtracted("Next")`,
			`ShortNameExtracted("id15")`,
			`DateExtracted("2019.03.02 10:00:00")`,
			`BodyPartExtracted("next top level")`,
		}, events)
	})

	t.Run("пропуск каждого сообщения оставляет только старты верхнего уровня", func(t *testing.T) {
		events := readEventsSkipping(t, "forwarded.html", func(ev domain.MessageEvent) bool {
			return ev.Kind != domain.EventStart
		})

		// Доставляются только Start сообщений верхнего уровня.
		assert.Equal(t, []string{`Start(0)`, `Start(0)`}, events)
	})
}

func TestFold_Attachments(t *testing.T) {
	t.Run("классифицирует все виды вложений", func(t *testing.T) {
		var atts []domain.Attachment
		f, err := os.Open(filepath.Join("testdata", "attachments.html"))
		require.NoError(t, err)
		defer f.Close()

		_, err = reader.Fold(tokenizer.New(f), 0, func(acc int, ev domain.MessageEvent) domain.EventResult[int] {
			if ev.Kind == domain.EventAttachmentExtracted {
				atts = append(atts, ev.Attachment)
			}
			return domain.Consumed(acc)
		})
		require.NoError(t, err)

		assert.Equal(t, []domain.Attachment{
			{Kind: domain.AttachmentPhoto, URL: "https://pp.userapi.com/c1/x.jpg", VkObj: "photo1_2", Description: "Sunset"},
			{Kind: domain.AttachmentDoc, URL: "https://vk.com/doc1_3", VkObj: "doc1_3", Description: "report.pdf"},
			{Kind: domain.AttachmentAudio, URL: "https://vk.com/audio1_4", Description: "Artist – Song"},
			{Kind: domain.AttachmentVideo, URL: "https://vk.com/video1_5", VkObj: "video1_5", Description: "Cats"},
			{Kind: domain.AttachmentSticker, URL: "https://vk.com/images/stickers/9/128.png", VkObj: "sticker9"},
			{Kind: domain.AttachmentLocation, URL: "https://maps.google.com/?q=55.75,37.61", Description: "Moscow"},
			{Kind: domain.AttachmentWall, VkObj: "wall-1_2", Description: "First line\nsecond line"},
			{Kind: domain.AttachmentPhoto, URL: "https://pp.userapi.com/c1/y.jpg", Description: "Photo"},
		}, atts)
	})

	t.Run("вложения следуют за телом сообщения", func(t *testing.T) {
		events := readEvents(t, "attachments.html")

		require.GreaterOrEqual(t, len(events), 6)
		assert.Equal(t, `BodyPartExtracted("look")`, events[4])
		assert.True(t, strings.HasPrefix(events[5], "AttachmentExtracted{Photo"))
	})

	t.Run("неизвестный вид вложения прерывает разбор", func(t *testing.T) {
		f, err := os.Open(filepath.Join("testdata", "unknown_attachment.html"))
		require.NoError(t, err)
		defer f.Close()

		events, err := foldStrings(tokenizer.New(f), acceptAll)
		require.Error(t, err)
		assert.ErrorIs(t, err, reader.ErrUnknownAttachment)

		var perr *reader.ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "MessageAttachments", perr.State)
		assert.Contains(t, perr.Token, "att_gift")

		// Уже доставленные события остаются в аккумуляторе.
		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("Denis Ivanov")`,
			`ShortNameExtracted("id1")`,
			`DateExtracted("2018.05.01 08:00:00")`,
		}, events)
	})
}

func TestFold_Errors(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{
			name:   "пустое полное имя",
			markup: `<hr><div class="msg_item"><div class="from"><b></b>`,
		},
		{
			name:   "обрыв документа внутри сообщения",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b>`,
		},
		{
			name: "ссылка вложения без иконки",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
				`<div class="attacments"><div class="attacment"><a href="https://vk.com">y</a></div></div></div>`,
		},
		{
			name: "иконка вложения без ссылки перед следующей иконкой",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
				`<div class="attacments"><div class="attacment"><div class="att_ico att_photo"></div></div>` +
				`<div class="attacment"><div class="att_ico att_doc"></div><a href="https://vk.com/doc1_2">d</a></div></div></div>`,
		},
		{
			name: "иконка вложения без ссылки в конце блока",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
				`<div class="attacments"><div class="attacment"><div class="att_ico att_photo"></div></div></div></div>`,
		},
		{
			name: "эмодзи без alt",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
				`<div class="msg_body"><img class="emoji"></div></div>`,
		},
		{
			name: "неизвестный контейнер сообщения",
			markup: `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
				`<div class="poll">?</div></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := foldHTML(tt.markup)
			require.Error(t, err)
			assert.ErrorIs(t, err, reader.ErrMalformed)

			var perr *reader.ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}

	t.Run("ошибка источника возвращается вызывающему", func(t *testing.T) {
		ioErr := errors.New("disk is gone")
		_, err := reader.Fold(failingSource{err: ioErr}, 0, func(acc int, _ domain.MessageEvent) domain.EventResult[int] {
			return domain.Consumed(acc)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ioErr)

		var perr *reader.ParseError
		assert.False(t, errors.As(err, &perr))
	})

	t.Run("сообщение об ошибке содержит состояние", func(t *testing.T) {
		_, err := foldHTML(`<hr><div class="msg_item"><div class="from"><b></b>`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FullNameStart")
		assert.Contains(t, err.Error(), "malformed export markup")
	})
}

func TestFold_Edges(t *testing.T) {
	t.Run("документ без разделителя не содержит сообщений", func(t *testing.T) {
		events, err := foldHTML(`<div class="msg_item"><b>X</b></div>`)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("пустой текст перед датой пропускается", func(t *testing.T) {
		events, err := foldHTML(`<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a><span></span>` +
			"  \n" + `<i></i>2018.01.01 00:00:00</div><div class="msg_body">hi</div></div>`)
		require.NoError(t, err)
		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("X")`,
			`ShortNameExtracted("x")`,
			`DateExtracted("2018.01.01 00:00:00")`,
			`BodyPartExtracted("hi")`,
		}, events)
	})

	t.Run("сообщение без даты", func(t *testing.T) {
		events, err := foldHTML(`<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a></div>` +
			`<div class="msg_body">hi</div></div>`)
		require.NoError(t, err)
		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("X")`,
			`ShortNameExtracted("x")`,
			`BodyPartExtracted("hi")`,
		}, events)
	})

	headerOnly := []struct {
		name   string
		header string
		want   []string
	}{
		{
			name:   "сообщение только с заголовком и датой",
			header: `<div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>`,
			want: []string{
				`Start(0)`,
				`FullNameExtracted("X")`,
				`ShortNameExtracted("x")`,
				`DateExtracted("2018.01.01 00:00:00")`,
			},
		},
		{
			name:   "сообщение только с заголовком без даты",
			header: `<div class="from"><b>X</b><a href="#">@x</a></div>`,
			want: []string{
				`Start(0)`,
				`FullNameExtracted("X")`,
				`ShortNameExtracted("x")`,
			},
		},
	}
	for _, tt := range headerOnly {
		t.Run(tt.name, func(t *testing.T) {
			events, err := foldHTML(`<hr><div class="msg_item">` + tt.header + `</div>` +
				`<div class="msg_item"><div class="from"><b>Y</b><a href="#">@y</a> 2018.01.02 00:00:00</div>` +
				`<div class="msg_body">hi</div></div>`)
			require.NoError(t, err)
			want := append(tt.want,
				`Start(0)`,
				`FullNameExtracted("Y")`,
				`ShortNameExtracted("y")`,
				`DateExtracted("2018.01.02 00:00:00")`,
				`BodyPartExtracted("hi")`,
			)
			assert.Equal(t, want, events)
		})
	}

	t.Run("пересланное сообщение только с заголовком", func(t *testing.T) {
		events, err := foldHTML(`<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
			`<div class="fwd"><div class="msg_item"><div class="from"><b>Y</b><a href="#">@y</a></div></div></div></div>` +
			`<div class="msg_item"><div class="from"><b>Z</b><a href="#">@z</a></div><div class="msg_body">ok</div></div>`)
		require.NoError(t, err)
		assert.Equal(t, []string{
			`Start(0)`,
			`FullNameExtracted("X")`,
			`ShortNameExtracted("x")`,
			`DateExtracted("2018.01.01 00:00:00")`,
			`Start(1)`,
			`FullNameExtracted("Y")`,
			`ShortNameExtracted("y")`,
			`Start(0)`,
			`FullNameExtracted("Z")`,
			`ShortNameExtracted("z")`,
			`BodyPartExtracted("ok")`,
		}, events)
	})

	t.Run("каждый вызов начинает с чистого состояния", func(t *testing.T) {
		markup := `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a> 2018.01.01 00:00:00</div>` +
			`<div class="msg_body">a</div><div class="fwd"><div class="msg_item"><div class="from"><b>Y</b><a href="#">@y</a></div>` +
			`<div class="msg_body">b</div></div></div></div>`

		first, err := foldHTML(markup)
		require.NoError(t, err)
		second, err := foldHTML(markup)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Contains(t, first, `Start(1)`)
	})
}

type failingSource struct {
	err error
}

func (s failingSource) Next() (domain.Token, error) {
	return domain.Token{}, s.err
}
