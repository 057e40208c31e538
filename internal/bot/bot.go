package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vkopt-message-parser/cmd/bot/config"
	"vkopt-message-parser/internal/adapters/exporter"
	"vkopt-message-parser/internal/apiclient"
	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/domain"
)

const (
	startCommand = "start"
	helpCommand  = "help"

	// Telegram ограничивает длину сообщения 4096 символами.
	maxMessageLength = 4096
	resultPageSize   = 100
)

const usageText = "Отправьте мне HTML-файлы экспорта переписки ВКонтакте, сделанного VkOpt. " +
	"Несколько файлов, отправленных подряд, обрабатываются вместе в порядке имен.\n\n" +
	"В подписи к файлу можно указать фильтры, по одному на строку:\n" +
	"only: id1, id2 (только эти авторы)\n" +
	"exclude: id3 (кроме этих авторов)\n" +
	"since: 2019.01.01 13:00:00 (не раньше этой даты)\n" +
	"depth: 0 (без пересланных сообщений)"

// ServerAPI - методы бэкенда, которые использует бот.
type ServerAPI interface {
	StartTask(ctx context.Context, files []apiclient.DocumentFile, opts domain.ParseOptions) (string, error)
	StartByHash(ctx context.Context, hash string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*apiclient.TaskStatus, error)
	GetTaskResult(ctx context.Context, taskID string, page, pageSize int) (*apiclient.ResultPage, error)
	GetText(ctx context.Context, taskID string) (string, error)
}

// fileBatch - файлы одного чата, ожидающие отправки на бэкенд.
type fileBatch struct {
	docs    []*tgbotapi.Document
	caption string
	timer   *time.Timer
}

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient ServerAPI
	taskStore    *TaskStore
	logger       *slog.Logger
	httpClient   *http.Client
	maxFileBytes uint64

	pendingFiles      map[int64]*fileBatch
	pendingFilesMutex sync.Mutex

	// Подменяются в тестах.
	sendMessageFunc      func(tgbotapi.Chattable) (tgbotapi.Message, error)
	getFileDirectURLFunc func(fileID string) (string, error)
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient ServerAPI, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	maxFileBytes, err := cfg.MaxFileBytes()
	if err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	b := &Bot{
		api:          api,
		cfg:          cfg,
		serverClient: serverClient,
		taskStore:    taskStore,
		logger:       logger,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout()},
		maxFileBytes: maxFileBytes,
		pendingFiles: make(map[int64]*fileBatch),
	}
	b.sendMessageFunc = api.Send
	b.getFileDirectURLFunc = api.GetFileDirectURL
	return b, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	b.reply(msg.Chat.ID, "Пожалуйста, отправьте мне HTML-файл экспорта переписки, сделанного VkOpt.")
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand:
		b.reply(msg.Chat.ID, "Добро пожаловать! Я превращаю экспорт переписки VkOpt в текст.\n\n"+usageText+
			"\n\nФайлы не сохраняются и обрабатываются на лету.")
	case helpCommand:
		b.reply(msg.Chat.ID, usageText)
	default:
		b.reply(msg.Chat.ID, "Я не знаю такой команды.")
	}
}

func isExportFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// handleDocument добавляет документ в пачку файлов чата. Пачка отправляется на бэкенд,
// когда набирается MaxFilesPerMessage файлов или истекает FileBatchTimeoutSecs
// с момента последнего файла.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	if !isExportFile(msg.Document.FileName) {
		b.reply(chatID, fmt.Sprintf("Файл %s не похож на экспорт VkOpt. Нужен HTML-файл.", msg.Document.FileName))
		return
	}

	if _, ok := b.taskStore.Get(chatID); ok {
		logger.Warn("user tried to start a new task while another is active")
		b.reply(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		return
	}

	b.pendingFilesMutex.Lock()
	batch, exists := b.pendingFiles[chatID]
	if !exists {
		batch = &fileBatch{}
		b.pendingFiles[chatID] = batch
	}

	if len(batch.docs) >= b.cfg.MaxFilesPerMessage {
		if batch.timer != nil {
			batch.timer.Stop()
		}
		delete(b.pendingFiles, chatID)
		b.pendingFilesMutex.Unlock()

		logger.Warn("file limit exceeded", slog.Int("limit", b.cfg.MaxFilesPerMessage))
		b.reply(chatID, fmt.Sprintf("Превышен лимит файлов в одном сообщении. Можно отправить не более %d файлов за раз. Отправьте файлы заново.",
			b.cfg.MaxFilesPerMessage))
		return
	}

	batch.docs = append(batch.docs, msg.Document)
	if batch.caption == "" {
		batch.caption = msg.Caption
	}
	full := len(batch.docs) >= b.cfg.MaxFilesPerMessage
	if batch.timer != nil {
		batch.timer.Stop()
	}
	if !full {
		batch.timer = time.AfterFunc(b.cfg.FileBatchTimeout(), func() {
			b.processFileBatch(ctx, chatID)
		})
	}
	b.pendingFilesMutex.Unlock()

	logger.Debug("document added to batch", slog.String("file_name", msg.Document.FileName), slog.Bool("batch_full", full))
	if full {
		go b.processFileBatch(ctx, chatID)
	}
}

type downloadedFile struct {
	name string
	data []byte
	hash string
}

// processFileBatch скачивает файлы пачки, упорядочивает их по имени и запускает задачу.
// Если такой же набор файлов с теми же параметрами уже обработан, задача берется из кэша
// бэкенда без повторной загрузки.
func (b *Bot) processFileBatch(ctx context.Context, chatID int64) {
	b.pendingFilesMutex.Lock()
	batch, ok := b.pendingFiles[chatID]
	if ok {
		delete(b.pendingFiles, chatID)
	}
	b.pendingFilesMutex.Unlock()
	if !ok || len(batch.docs) == 0 {
		return
	}

	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.Int("files", len(batch.docs)))

	opts, err := parseCaption(batch.caption)
	if err != nil {
		logger.Info("invalid caption", slog.String("error", err.Error()))
		b.reply(chatID, fmt.Sprintf("Не удалось разобрать параметры в подписи: %v\n\n%s", err, usageText))
		return
	}

	files := make([]downloadedFile, 0, len(batch.docs))
	for _, doc := range batch.docs {
		data, err := b.downloadFile(ctx, doc)
		if err != nil {
			logger.Error("failed to download file", slog.String("file_name", doc.FileName), slog.String("error", err.Error()))
			b.reply(chatID, fmt.Sprintf("Не удалось скачать файл %s: %v", doc.FileName, err))
			return
		}
		files = append(files, downloadedFile{name: doc.FileName, data: data, hash: cache.CalculateHashFromBytes(data)})
	}

	// Части одного экспорта обычно пронумерованы в имени файла.
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].name != files[j].name {
			return files[i].name < files[j].name
		}
		return files[i].hash < files[j].hash
	})

	taskID, err := b.startTask(ctx, files, opts)
	if err != nil {
		logger.Error("failed to start task on backend", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось начать обработку файлов на сервере. Пожалуйста, попробуйте позже.")
		return
	}

	logger = logger.With(slog.String("task_id", taskID))
	logger.Info("task started on backend")

	b.taskStore.Set(chatID, taskID)
	go b.pollTaskStatus(context.Background(), chatID, taskID)

	b.reply(chatID, fmt.Sprintf("✅ Получено файлов: %d. Обработка началась, ожидайте результата.", len(files)))
}

func (b *Bot) startTask(ctx context.Context, files []downloadedFile, opts domain.ParseOptions) (string, error) {
	hashes := make([]string, 0, len(files))
	for _, f := range files {
		hashes = append(hashes, f.hash)
	}

	if key, err := cache.ResultKey(hashes, opts); err == nil {
		taskID, err := b.serverClient.StartByHash(ctx, key)
		switch {
		case err == nil:
			b.logger.Info("result found in backend cache", slog.String("hash", key))
			return taskID, nil
		case errors.Is(err, apiclient.ErrNotCached):
		default:
			b.logger.Warn("process-by-hash failed, uploading files", slog.String("error", err.Error()))
		}
	}

	docs := make([]apiclient.DocumentFile, 0, len(files))
	for _, f := range files {
		docs = append(docs, apiclient.DocumentFile{Name: f.name, Content: bytes.NewReader(f.data)})
	}
	return b.serverClient.StartTask(ctx, docs, opts)
}

func (b *Bot) downloadFile(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	if b.maxFileBytes > 0 && doc.FileSize > 0 && uint64(doc.FileSize) > b.maxFileBytes {
		return nil, fmt.Errorf("файл больше %d байт", b.maxFileBytes)
	}

	fileURL, err := b.getFileDirectURLFunc(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file direct url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if b.maxFileBytes > 0 {
		body = io.LimitReader(resp.Body, int64(b.maxFileBytes)+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if b.maxFileBytes > 0 && uint64(len(data)) > b.maxFileBytes {
		return nil, fmt.Errorf("файл больше %d байт", b.maxFileBytes)
	}
	return data, nil
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.sendMessageFunc(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// pollTaskStatus асинхронно опрашивает статус задачи на бэкенд-сервере.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Delete(chatID)

	ticker := time.NewTicker(b.cfg.PollingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case apiclient.StatusCompleted:
				logger.Info("task completed")
				b.processCompletedTask(ctx, chatID, taskID)
				return
			case apiclient.StatusFailed:
				logger.Warn("task failed", slog.String("reason", status.ErrorMessage))
				b.reply(chatID, fmt.Sprintf("Произошла ошибка при обработке файлов: %s", status.ErrorMessage))
				return
			case apiclient.StatusPending, apiclient.StatusProcessing:
				logger.Debug("task is in progress", slog.String("status", status.Status))
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// processCompletedTask отправляет результат: таблицу участников, текст сообщением
// или файлом и, для больших переписок, книгу Excel.
func (b *Bot) processCompletedTask(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	result, err := b.fetchAllResults(ctx, taskID)
	if err != nil {
		logger.Error("failed to fetch all results", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить результаты для выполненной задачи. Пожалуйста, попробуйте позже.")
		return
	}

	count := result.MessageCount()
	if elapsed, ok := b.taskStore.Elapsed(chatID); ok {
		logger = logger.With(slog.Duration("elapsed", elapsed))
	}
	logger.Info("successfully fetched all results", slog.Int("message_count", count))
	if count == 0 {
		b.reply(chatID, "В файлах не найдено сообщений, подходящих под фильтры.")
		return
	}

	text, err := b.serverClient.GetText(ctx, taskID)
	if err != nil {
		logger.Error("failed to fetch text", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить текст переписки. Пожалуйста, попробуйте позже.")
		return
	}

	b.sendParticipants(chatID, result.Participants, count)
	b.sendText(chatID, text)

	if count >= b.cfg.ExcelThreshold {
		logger.Info("message count is over threshold, sending excel file")
		b.sendExcelResult(chatID, result)
	}
}

// fetchAllResults собирает все страницы результата в один ConversionResult.
// Сервер не сообщает, из какого файла каждое сообщение, поэтому все они попадают в один чат.
func (b *Bot) fetchAllResults(ctx context.Context, taskID string) (*domain.ConversionResult, error) {
	var (
		messages []domain.Message
		last     *apiclient.ResultPage
	)
	for page := 1; ; page++ {
		result, err := b.serverClient.GetTaskResult(ctx, taskID, page, resultPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get task result page %d: %w", page, err)
		}
		messages = append(messages, result.Data...)
		last = result

		if page >= result.Pagination.TotalPages {
			break
		}
	}

	return &domain.ConversionResult{
		Chats:        []domain.ParsedChat{{Source: strings.Join(last.Files, ", "), Messages: messages}},
		Participants: last.Participants,
	}, nil
}

func (b *Bot) widths() exporter.Widths {
	return exporter.Widths{
		ShortName: b.cfg.Render.ShortName,
		FullName:  b.cfg.Render.FullName,
		Count:     b.cfg.Render.Count,
	}
}

// sendParticipants отправляет таблицу участников в моноширинном блоке.
func (b *Bot) sendParticipants(chatID int64, participants []domain.Participant, messageCount int) {
	table := exporter.ParticipantsTable(participants, b.widths())
	header := fmt.Sprintf("Сообщений: %d, участников: %d.\n", messageCount, len(participants))

	text := header + "<pre><code>" + html.EscapeString(table) + "</code></pre>"
	if len(text) > maxMessageLength {
		b.logger.Warn("participants table is too long, sending as file", slog.Int("length", len(text)))
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  fmt.Sprintf("participants_%s.txt", time.Now().Format("2006-01-02_15-04-05")),
			Bytes: []byte(table),
		})
		doc.Caption = header
		b.sendMessage(doc)
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(msg)
}

// sendText отправляет текст переписки сообщением, а если он не помещается, файлом.
func (b *Bot) sendText(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		b.reply(chatID, "Сообщения найдены, но текста в них нет (только вложения или служебные события).")
		return
	}

	if len(text) <= maxMessageLength {
		b.reply(chatID, text)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("messages_%s.txt", time.Now().Format("2006-01-02_15-04-05")),
		Bytes: []byte(text),
	})
	doc.Caption = "Текст слишком большой для одного сообщения, поэтому он прикреплен в виде файла."
	b.sendMessage(doc)
}

func (b *Bot) sendExcelResult(chatID int64, result *domain.ConversionResult) {
	var buf bytes.Buffer
	if err := exporter.WriteWorkbook(&buf, result); err != nil {
		b.logger.Error("failed to write excel to buffer", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось сгенерировать Excel-файл.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("messages_%s.xlsx", time.Now().Format("2006-01-02_15-04-05")),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Все %d сообщений с вложениями и пересланными сообщениями.", result.MessageCount())
	b.sendMessage(doc)
}
