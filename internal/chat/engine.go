// Package chat owns the in-memory conversation state: the contact list
// and, for the selected contact, an ordered message sequence. All
// mutations are optimistic; local state is authoritative until a
// reconciler says otherwise.
//
// The engine is single-owner: it expects to be driven from one logical
// thread and is not safe for concurrent use.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/logger"
	"github.com/lfarias/mensageiro/internal/media"
	"github.com/lfarias/mensageiro/internal/models"
	"github.com/lfarias/mensageiro/internal/upload"
)

var log = logger.New("chat")

// AttachmentBucket is where chat uploads live.
const AttachmentBucket = "attachments"

// Identity supplies the acting user for message attribution.
type Identity interface {
	User() *models.User
}

// LoadFunc loads a contact's message sequence when it is selected. The
// result replaces, never merges with, the previous sequence.
type LoadFunc func(contactID int64) []models.Message

// Mutation describes a committed local change, handed to the
// reconciler after every commit.
type Mutation struct {
	Op        string
	ContactID int64
	Message   *models.Message
}

// Mutation ops.
const (
	OpSend          = "send"
	OpEdit          = "edit"
	OpDelete        = "delete"
	OpAttach        = "attach"
	OpDeleteContact = "delete_contact"
)

// Reconciler is the hook a future server sync attaches to. The default
// is a no-op: local state stays authoritative.
type Reconciler func(Mutation)

// Engine maintains contacts and the active message sequence.
type Engine struct {
	identity  Identity
	objects   backend.ObjectStore
	load      LoadFunc
	reconcile Reconciler
	recorder  *media.Recorder

	contacts      []models.Contact
	activeID      int64
	messages      []models.Message
	nextContactID int64
	nextMessageID int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader sets the per-selection message loader.
func WithLoader(fn LoadFunc) Option {
	return func(e *Engine) { e.load = fn }
}

// WithReconciler sets the post-commit hook.
func WithReconciler(fn Reconciler) Option {
	return func(e *Engine) { e.reconcile = fn }
}

// WithRecorder attaches an audio recorder for voice messages.
func WithRecorder(r *media.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New creates an engine with no contacts and no selection.
func New(identity Identity, objects backend.ObjectStore, opts ...Option) *Engine {
	e := &Engine{
		identity:      identity,
		objects:       objects,
		activeID:      0,
		nextContactID: 1,
		nextMessageID: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) commit(m Mutation) {
	if e.reconcile != nil {
		e.reconcile(m)
	}
}

// Contacts returns the conversation list in insertion order.
func (e *Engine) Contacts() []models.Contact {
	out := make([]models.Contact, len(e.contacts))
	copy(out, e.contacts)
	return out
}

// ActiveContact returns the selected contact, or nil.
func (e *Engine) ActiveContact() *models.Contact {
	if e.activeID == 0 {
		return nil
	}
	for i := range e.contacts {
		if e.contacts[i].ID == e.activeID {
			c := e.contacts[i]
			return &c
		}
	}
	return nil
}

// Messages returns the active message sequence in send order.
func (e *Engine) Messages() []models.Message {
	out := make([]models.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// StartChat adds a new contact to the list.
func (e *Engine) StartChat(name, avatarURL string) (models.Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Contact{}, errs.Validation("contact name is required")
	}
	c := models.Contact{
		ID:        e.nextContactID,
		Name:      name,
		AvatarURL: avatarURL,
	}
	e.nextContactID++
	e.contacts = append(e.contacts, c)
	log.Debug("started chat with %s", name)
	return c, nil
}

// SelectContact makes a contact active and loads its message sequence,
// replacing whatever was visible before.
func (e *Engine) SelectContact(id int64) (models.Contact, error) {
	for i := range e.contacts {
		if e.contacts[i].ID != id {
			continue
		}
		e.activeID = id
		e.messages = nil
		if e.load != nil {
			e.messages = e.load(id)
		}
		e.nextMessageID = 1
		for _, m := range e.messages {
			if m.ID >= e.nextMessageID {
				e.nextMessageID = m.ID + 1
			}
		}
		return e.contacts[i], nil
	}
	return models.Contact{}, fmt.Errorf("contact %d not found", id)
}

// Deselect clears the active contact and its message sequence.
func (e *Engine) Deselect() {
	e.activeID = 0
	e.messages = nil
}

func (e *Engine) requireIdentity() error {
	if e.identity == nil || e.identity.User() == nil {
		return errs.Validation("not signed in")
	}
	return nil
}

func (e *Engine) requireActive() (*models.Contact, error) {
	if e.activeID == 0 {
		return nil, errs.Validation("no active conversation")
	}
	for i := range e.contacts {
		if e.contacts[i].ID == e.activeID {
			return &e.contacts[i], nil
		}
	}
	return nil, errs.Validation("no active conversation")
}

func (e *Engine) append(msg models.Message) *models.Message {
	msg.ID = e.nextMessageID
	e.nextMessageID++
	e.messages = append(e.messages, msg)
	return &e.messages[len(e.messages)-1]
}

func (e *Engine) updatePreview(c *models.Contact, preview string, at time.Time) {
	c.LastMessage = preview
	c.LastMessageTime = at
}

// SendMessage appends a text message from the local identity. Empty or
// whitespace-only text is a no-op and returns (nil, nil).
func (e *Engine) SendMessage(text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := e.requireIdentity(); err != nil {
		return nil, err
	}
	active, err := e.requireActive()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := e.append(models.Message{
		Content: text,
		Sender:  models.SenderSelf,
		SentAt:  now,
	})
	e.updatePreview(active, text, now)
	e.commit(Mutation{Op: OpSend, ContactID: active.ID, Message: msg})
	return msg, nil
}

// AttachFile validates, uploads, and appends a file message. Images
// carry no content text; documents carry the file name. A rejected
// file never touches the message sequence.
func (e *Engine) AttachFile(ctx context.Context, name, contentType string, data []byte) (*models.Message, error) {
	if err := e.requireIdentity(); err != nil {
		return nil, err
	}
	active, err := e.requireActive()
	if err != nil {
		return nil, err
	}

	kind, err := upload.Check(name, contentType, int64(len(data)))
	if err != nil {
		return nil, err
	}

	url, err := e.store(ctx, active.ID, name, contentType, data)
	if err != nil {
		return nil, err
	}

	content := ""
	if kind == models.AttachmentDocument {
		content = name
	}

	now := time.Now()
	msg := e.append(models.Message{
		Content: content,
		Sender:  models.SenderSelf,
		SentAt:  now,
		Attachment: &models.Attachment{
			Kind: kind,
			URL:  url,
			Name: name,
		},
	})
	e.updatePreview(active, name, now)
	e.commit(Mutation{Op: OpAttach, ContactID: active.ID, Message: msg})
	return msg, nil
}

// store uploads attachment bytes and resolves their public URL.
func (e *Engine) store(ctx context.Context, contactID int64, name, contentType string, data []byte) (string, error) {
	key := fmt.Sprintf("%d/%d-%s", contactID, time.Now().UnixMilli(), name)
	err := e.objects.Upload(ctx, AttachmentBucket, key, data, backend.UploadOptions{
		ContentType:  contentType,
		CacheControl: "3600",
	})
	if err != nil {
		return "", errs.Persistence("attachment upload", err)
	}
	return e.objects.PublicURL(AttachmentBucket, key), nil
}

// EditMessage replaces the content of a local-sender message in place,
// preserving id, timestamp, and position. Empty replacement text is
// rejected; an edit never deletes.
func (e *Engine) EditMessage(id int64, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return errs.Validation("message text cannot be empty")
	}
	for i := range e.messages {
		if e.messages[i].ID != id {
			continue
		}
		if e.messages[i].Sender != models.SenderSelf {
			return errs.Validation("only your own messages can be edited")
		}
		e.messages[i].Content = newText
		e.commit(Mutation{Op: OpEdit, ContactID: e.activeID, Message: &e.messages[i]})
		return nil
	}
	return errs.Validation("message not found")
}

// DeleteMessage removes a message by id, preserving the relative order
// of the remainder. Unknown ids are a no-op.
func (e *Engine) DeleteMessage(id int64) bool {
	for i := range e.messages {
		if e.messages[i].ID != id {
			continue
		}
		deleted := e.messages[i]
		e.messages = append(e.messages[:i], e.messages[i+1:]...)
		e.commit(Mutation{Op: OpDelete, ContactID: e.activeID, Message: &deleted})
		return true
	}
	return false
}

// DeleteContact removes a contact. When it is the active contact, the
// selection and the message sequence are cleared in the same step, so
// no render ever sees a dangling active id.
func (e *Engine) DeleteContact(id int64) bool {
	for i := range e.contacts {
		if e.contacts[i].ID != id {
			continue
		}
		e.contacts = append(e.contacts[:i], e.contacts[i+1:]...)
		if e.activeID == id {
			e.activeID = 0
			e.messages = nil
		}
		e.commit(Mutation{Op: OpDeleteContact, ContactID: id})
		return true
	}
	return false
}

// FilterContacts returns the contacts whose name or last-message
// preview contains query, case-insensitively. A pure function of its
// inputs.
func FilterContacts(contacts []models.Contact, query string) []models.Contact {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]models.Contact, len(contacts))
		copy(out, contacts)
		return out
	}
	out := []models.Contact{}
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.LastMessage), query) {
			out = append(out, c)
		}
	}
	return out
}

// FilterContacts filters this engine's contact list.
func (e *Engine) FilterContacts(query string) []models.Contact {
	return FilterContacts(e.contacts, query)
}
