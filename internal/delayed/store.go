package delayed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"markbot/internal/transport"
	logx "markbot/pkg/logx"
)

var ErrNotFound = errors.New("delayed: message not found")

const (
	recordsFile    = "delayed_messages.json"
	attachmentsDir = "attachments"

	// MaxAttachmentSize caps a single ingested file at 10 MiB.
	MaxAttachmentSize = 10 << 20
)

type Config struct {
	DataDir  string
	Target   transport.ChatTarget
	Location *time.Location
}

// Store owns all pending delayed messages. Every mutation persists the
// record file; time edits cancel and restart the message's wait task.
type Store struct {
	cfg      Config
	log      logx.Logger
	sender   transport.Sender
	notifier transport.Notifier
	recorder Recorder

	mu     sync.Mutex
	msgs   map[int]Message
	nextID int
	tasks  map[int]context.CancelFunc

	runCtx context.Context
	wg     sync.WaitGroup
}

func NewStore(cfg Config, sender transport.Sender, notifier transport.Notifier, recorder Recorder, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		cfg:      cfg,
		log:      log,
		sender:   sender,
		notifier: notifier,
		recorder: recorder,
		msgs:     map[int]Message{},
		nextID:   1,
		tasks:    map[int]context.CancelFunc{},
	}
}

func (s *Store) AttachmentsDir() string {
	return filepath.Join(s.cfg.DataDir, attachmentsDir)
}

func (s *Store) recordsPath() string {
	return filepath.Join(s.cfg.DataDir, recordsFile)
}

// Start loads persisted records, drops any whose fire time has already
// elapsed (removing their attachment files), and restarts wait tasks
// for the rest. A corrupt or unreadable file degrades to an empty
// store; startup never fails on persistence problems.
func (s *Store) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.AttachmentsDir(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	s.runCtx = ctx

	data, err := s.loadFile()
	if err != nil {
		s.log.Warn("delayed message load failed, starting empty", logx.Err(err))
		data = fileData{NextID: 1, Messages: map[int]Message{}}
	}

	now := time.Now().In(s.cfg.Location)
	expired := 0

	s.mu.Lock()
	s.nextID = data.NextID
	if s.nextID < 1 {
		s.nextID = 1
	}
	for id, m := range data.Messages {
		if !m.FireAt.After(now) {
			s.removeFilesLocked(m)
			expired++
			continue
		}
		s.msgs[id] = m
		s.startWaiterLocked(m)
	}
	active := len(s.msgs)
	s.mu.Unlock()

	if expired > 0 {
		s.persist()
	}
	s.log.Info("delayed messages loaded",
		logx.Int("active", active), logx.Int("expired_dropped", expired))
	return nil
}

// Stop cancels all wait tasks and waits for them to unwind.
func (s *Store) Stop() {
	s.mu.Lock()
	for _, cancel := range s.tasks {
		cancel()
	}
	s.tasks = map[int]context.CancelFunc{}
	s.mu.Unlock()
	s.wg.Wait()
}

// Create allocates the next id, persists the record, and starts its
// wait task. fireAt must be in the future.
func (s *Store) Create(text string, fireAt time.Time, atts []transport.Attachment) (Message, error) {
	now := time.Now().In(s.cfg.Location)
	if !fireAt.After(now) {
		return Message{}, fmt.Errorf("fire time %s is in the past", fireAt.Format("02.01.2006 15:04:05"))
	}

	s.mu.Lock()
	m := Message{
		ID:          s.nextID,
		Text:        text,
		FireAt:      fireAt.In(s.cfg.Location),
		CreatedAt:   now,
		Attachments: atts,
	}
	s.nextID++
	s.msgs[m.ID] = m
	s.startWaiterLocked(m)
	s.mu.Unlock()

	s.persist()
	s.log.Info("delayed message created",
		logx.Int("id", m.ID), logx.Time("fire_at", m.FireAt), logx.Int("attachments", len(atts)))
	return m, nil
}

// EditText replaces the message text. The wait task is untouched; it
// re-reads the record at fire time.
func (s *Store) EditText(id int, text string) error {
	s.mu.Lock()
	m, ok := s.msgs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	m.Text = text
	s.msgs[id] = m
	s.mu.Unlock()

	s.persist()
	return nil
}

// EditFireAt moves the fire time: the current wait task is canceled and
// a fresh one started, so the message fires at most once.
func (s *Store) EditFireAt(id int, fireAt time.Time) error {
	now := time.Now().In(s.cfg.Location)
	if !fireAt.After(now) {
		return fmt.Errorf("fire time %s is in the past", fireAt.Format("02.01.2006 15:04:05"))
	}

	s.mu.Lock()
	m, ok := s.msgs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if cancel, ok := s.tasks[id]; ok {
		cancel()
		delete(s.tasks, id)
	}
	m.FireAt = fireAt.In(s.cfg.Location)
	s.msgs[id] = m
	s.startWaiterLocked(m)
	s.mu.Unlock()

	s.persist()
	s.log.Info("delayed message rescheduled", logx.Int("id", id), logx.Time("fire_at", fireAt))
	return nil
}

// AddAttachments appends files to an existing record.
func (s *Store) AddAttachments(id int, atts []transport.Attachment) error {
	s.mu.Lock()
	m, ok := s.msgs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	m.Attachments = append(m.Attachments, atts...)
	s.msgs[id] = m
	s.mu.Unlock()

	s.persist()
	return nil
}

// RemoveAttachment deletes the idx-th attachment and its backing file.
func (s *Store) RemoveAttachment(id, idx int) error {
	s.mu.Lock()
	m, ok := s.msgs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if idx < 0 || idx >= len(m.Attachments) {
		s.mu.Unlock()
		return fmt.Errorf("attachment index %d out of range", idx)
	}
	att := m.Attachments[idx]
	m.Attachments = append(m.Attachments[:idx], m.Attachments[idx+1:]...)
	s.msgs[id] = m
	s.mu.Unlock()

	if err := os.Remove(att.FilePath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("attachment file removal failed", logx.String("path", att.FilePath), logx.Err(err))
	}
	s.persist()
	return nil
}

// Delete cancels the wait task, removes attachment files and the
// record, and persists.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	m, ok := s.msgs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if cancel, ok := s.tasks[id]; ok {
		cancel()
		delete(s.tasks, id)
	}
	delete(s.msgs, id)
	s.removeFilesLocked(m)
	s.mu.Unlock()

	s.persist()
	s.log.Info("delayed message deleted", logx.Int("id", id))
	return nil
}

// Get returns a copy of the record.
func (s *Store) Get(id int) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	return m, ok
}

// List returns all pending messages ordered by fire time.
func (s *Store) List() []Message {
	s.mu.Lock()
	out := make([]Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// StoreAttachmentName builds the stored filename for an ingested file:
// sanitized and prefixed by the message id so one shared directory can
// hold every record's files.
func StoreAttachmentName(messageID int, originalName string) string {
	var b strings.Builder
	for _, r := range originalName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("%d_%s", messageID, name)
}

// IsImageName reports whether the filename looks like an image.
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

func (s *Store) loadFile() (fileData, error) {
	b, err := os.ReadFile(s.recordsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return fileData{NextID: 1, Messages: map[int]Message{}}, nil
		}
		return fileData{}, err
	}
	var data fileData
	if err := json.Unmarshal(b, &data); err != nil {
		return fileData{}, fmt.Errorf("parse %s: %w", recordsFile, err)
	}
	if data.Messages == nil {
		data.Messages = map[int]Message{}
	}
	return data, nil
}

// persist writes the record file atomically (tmp + rename). Failures
// are logged, not returned: a write error must not lose the in-memory
// state or abort the mutation that triggered it.
func (s *Store) persist() {
	s.mu.Lock()
	data := fileData{NextID: s.nextID, Messages: make(map[int]Message, len(s.msgs))}
	for id, m := range s.msgs {
		data.Messages[id] = m
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.log.Error("delayed message marshal failed", logx.Err(err))
		return
	}
	tmp := s.recordsPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Error("delayed message save failed", logx.Err(err))
		return
	}
	if err := os.Rename(tmp, s.recordsPath()); err != nil {
		s.log.Error("delayed message save rename failed", logx.Err(err))
	}
}

func (s *Store) removeFilesLocked(m Message) {
	for _, att := range m.Attachments {
		if err := os.Remove(att.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("attachment file removal failed",
				logx.Int("id", m.ID), logx.String("path", att.FilePath), logx.Err(err))
		}
	}
}
