package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"go.uber.org/zap"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func (s *ServiceTestSuite) upload(channelID, userID uint64, name string, data []byte) (*models.Attachment, error) {
	return s.chat.Upload(s.ctx, UploadInput{
		ChannelID:   channelID,
		UserID:      userID,
		Filename:    name,
		ContentType: "application/octet-stream",
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
}

func (s *ServiceTestSuite) TestValidateAccess() {
	channelID := s.enableChat(s.task.ID)

	_, user, err := s.chat.ValidateAccess(s.ctx, channelID, s.customer.ID)
	s.Require().NoError(err)
	s.Equal(s.customer.ID, user.ID)

	_, _, err = s.chat.ValidateAccess(s.ctx, channelID, s.outsider.ID)
	s.ErrorIs(err, ErrChannelAccessDenied)

	_, _, err = s.chat.ValidateAccess(s.ctx, 9999, s.customer.ID)
	s.ErrorIs(err, ErrChannelAccessDenied)
}

func (s *ServiceTestSuite) TestNonMember_DeniedForEveryOperation() {
	channelID := s.enableChat(s.task.ID)

	_, err := s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.outsider.ID, Body: "hi"})
	s.ErrorIs(err, ErrChannelAccessDenied)

	_, err = s.chat.History(s.ctx, channelID, s.outsider.ID, 0)
	s.ErrorIs(err, ErrChannelAccessDenied)

	_, err = s.upload(channelID, s.outsider.ID, "a.txt", []byte("x"))
	s.ErrorIs(err, ErrChannelAccessDenied)

	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: 9999, UserID: s.customer.ID, Body: "hi"})
	s.ErrorIs(err, ErrChannelAccessDenied)

	var count int64
	s.Require().NoError(s.db.Model(&models.Message{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ServiceTestSuite) TestPostThenHistory_InsertionOrder() {
	channelID := s.enableChat(s.task.ID)

	bodies := []string{"first <b>raw</b>", "second", "third"}
	authors := []uint64{s.customer.ID, s.agent.ID, s.customer.ID}
	for i, body := range bodies {
		msg, err := s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: authors[i], Body: body})
		s.Require().NoError(err)
		s.Equal(models.MessageTypeComment, msg.MessageType)
	}

	for _, reader := range []uint64{s.agent.ID, s.customer.ID} {
		history, err := s.chat.History(s.ctx, channelID, reader, 0)
		s.Require().NoError(err)
		s.Require().Len(history, 3)
		for i, msg := range history {
			s.Equal(bodies[i], msg.Body)
		}
		s.Equal(s.customer.PartnerID, history[0].AuthorPartnerID)
		s.Equal("customer", history[0].Author.Name)
		s.Equal(s.agent.PartnerID, history[1].AuthorPartnerID)
	}

	limited, err := s.chat.History(s.ctx, channelID, s.agent.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(limited, 2)
	s.Equal("first <b>raw</b>", limited[0].Body)
}

func (s *ServiceTestSuite) TestPost_DropsMissingAttachments() {
	channelID := s.enableChat(s.task.ID)

	att, err := s.upload(channelID, s.customer.ID, "notes.txt", []byte("hello"))
	s.Require().NoError(err)

	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{
		ChannelID:     channelID,
		UserID:        s.customer.ID,
		Body:          "see attached",
		AttachmentIDs: []uint64{att.ID, 9999, att.ID},
	})
	s.Require().NoError(err)

	history, err := s.chat.History(s.ctx, channelID, s.agent.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Require().Len(history[0].Attachments, 1)
	got := history[0].Attachments[0]
	s.Equal(att.ID, got.ID)
	s.Equal("notes.txt", got.Name)
	s.Equal(att.Token(), got.Token())
	s.Equal(models.AttachmentResModelChannel, got.ResModel)
	s.Equal(channelID, got.ResID)
}

func (s *ServiceTestSuite) TestPost_DropsForeignAttachments() {
	channelID := s.enableChat(s.task.ID)

	other := s.enableChat(testTaskFor(s).ID)
	foreign, err := s.upload(other, s.agent.ID, "other.txt", []byte("other"))
	s.Require().NoError(err)
	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: other, UserID: s.agent.ID, Body: "x", AttachmentIDs: []uint64{foreign.ID}})
	s.Require().NoError(err)

	// bound to another channel
	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.agent.ID, Body: "moved", AttachmentIDs: []uint64{foreign.ID}})
	s.Require().NoError(err)

	// uploaded by someone else
	byAgent, err := s.upload(channelID, s.agent.ID, "agent.txt", []byte("agent"))
	s.Require().NoError(err)
	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.customer.ID, Body: "borrowed", AttachmentIDs: []uint64{byAgent.ID}})
	s.Require().NoError(err)

	history, err := s.chat.History(s.ctx, channelID, s.customer.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Empty(history[0].Attachments)
	s.Empty(history[1].Attachments)

	stored, err := s.chat.attachmentRepo.FindByID(s.ctx, byAgent.ID)
	s.Require().NoError(err)
	s.Equal(models.AttachmentResModelCompose, stored.ResModel)
}

func testTaskFor(s *ServiceTestSuite) *models.Task {
	task, err := s.tasks.CreateTask(CreateTaskInput{Title: "Other", OrganizationID: s.org.ID, CreatorID: s.agent.ID})
	s.Require().NoError(err)
	return task
}

func (s *ServiceTestSuite) TestUpload_WithinLimit() {
	channelID := s.enableChat(s.task.ID)
	s.chat.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	att, err := s.upload(channelID, s.customer.ID, "photo.png", pngHeader)
	s.Require().NoError(err)
	s.NotEmpty(att.Token())
	s.Equal("image/png", att.Mimetype)
	s.True(att.IsImage())
	s.Equal(int64(len(pngHeader)), att.FileSize)
	s.Equal(s.customer.ID, att.CreatedByID)
	s.Equal(models.AttachmentResModelCompose, att.ResModel)
	s.True(strings.HasPrefix(att.StorageKey, "attachments/2024/05/01/"))
	s.True(strings.HasSuffix(att.StorageKey, ".png"))

	meta, rc, err := s.chat.OpenAttachment(s.ctx, att.ID, att.Token())
	s.Require().NoError(err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal(pngHeader, data)
	s.Equal(att.ID, meta.ID)

	_, _, err = s.chat.OpenAttachment(s.ctx, att.ID, "wrong")
	s.ErrorIs(err, ErrAttachmentNotFound)
	_, _, err = s.chat.OpenAttachment(s.ctx, att.ID, "")
	s.ErrorIs(err, ErrAttachmentNotFound)
}

func (s *ServiceTestSuite) TestUpload_FallsBackToDeclaredType() {
	channelID := s.enableChat(s.task.ID)

	att, err := s.chat.Upload(s.ctx, UploadInput{
		ChannelID:   channelID,
		UserID:      s.agent.ID,
		Filename:    "blob.bin",
		ContentType: "application/x-custom",
		Size:        -1,
		Body:        bytes.NewReader([]byte{0x00, 0x01, 0x02, 0x03}),
	})
	s.Require().NoError(err)
	s.Equal("application/x-custom", att.Mimetype)
	s.False(att.IsImage())
}

func (s *ServiceTestSuite) TestUpload_OversizeCreatesNothing() {
	channelID := s.enableChat(s.task.ID)
	big := bytes.Repeat([]byte("a"), int(s.chat.Limits().MaxUploadBytes)+1)

	_, err := s.upload(channelID, s.customer.ID, "big.txt", big)
	s.ErrorIs(err, ErrPayloadTooLarge)

	// a client that under-reports the size is caught while reading
	_, err = s.chat.Upload(s.ctx, UploadInput{
		ChannelID: channelID, UserID: s.customer.ID, Filename: "big.txt", Size: 1, Body: bytes.NewReader(big),
	})
	s.ErrorIs(err, ErrPayloadTooLarge)

	var count int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).Count(&count).Error)
	s.Zero(count)

	exact := bytes.Repeat([]byte("a"), int(s.chat.Limits().MaxUploadBytes))
	_, err = s.upload(channelID, s.customer.ID, "exact.txt", exact)
	s.NoError(err)
}

// rejectingAttachments fails every insert and delegates everything else.
type rejectingAttachments struct {
	repository.AttachmentRepository
}

func (rejectingAttachments) Create(context.Context, *models.Attachment) error {
	return errors.New("insert failed")
}

func (s *ServiceTestSuite) chatWithRejectingAttachments() *ChatService {
	chat := NewChatService(
		repository.NewUserRepository(s.db),
		repository.NewOrganizationRepository(s.db),
		repository.NewTaskRepository(s.db),
		repository.NewChannelRepository(s.db),
		repository.NewMessageRepository(s.db),
		rejectingAttachments{repository.NewAttachmentRepository(s.db)},
		s.channels, s.blobs, s.chat.Limits(), zap.NewNop(),
	)
	chat.now = s.chat.now
	return chat
}

func (s *ServiceTestSuite) storedBlobs() int {
	count := 0
	err := filepath.WalkDir(s.blobDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	s.Require().NoError(err)
	return count
}

func (s *ServiceTestSuite) TestUpload_FailedInsertRemovesBlob() {
	channelID := s.enableChat(s.task.ID)
	chat := s.chatWithRejectingAttachments()

	_, err := chat.Upload(s.ctx, UploadInput{
		ChannelID: channelID, UserID: s.customer.ID, Filename: "photo.png",
		Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader),
	})
	s.Require().Error(err)

	s.Zero(s.storedBlobs())
	var count int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ServiceTestSuite) TestUpload_FailedInsertKeepsSharedBlob() {
	channelID := s.enableChat(s.task.ID)
	fixed := func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	s.chat.now = fixed

	kept, err := s.upload(channelID, s.customer.ID, "photo.png", pngHeader)
	s.Require().NoError(err)

	_, err = s.chatWithRejectingAttachments().Upload(s.ctx, UploadInput{
		ChannelID: channelID, UserID: s.customer.ID, Filename: "photo.png",
		Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader),
	})
	s.Require().Error(err)

	_, rc, err := s.chat.OpenAttachment(s.ctx, kept.ID, kept.Token())
	s.Require().NoError(err)
	s.NoError(rc.Close())
}

func (s *ServiceTestSuite) TestHistory_GeneratesMissingTokens() {
	channelID := s.enableChat(s.task.ID)
	att := &models.Attachment{
		Name: "legacy.txt", Mimetype: "text/plain", FileSize: 1, StorageKey: "attachments/legacy.txt",
		ResModel: models.AttachmentResModelCompose, CreatedByID: s.agent.ID,
	}
	s.Require().NoError(s.db.Create(att).Error)
	s.Nil(att.AccessToken)

	_, err := s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.agent.ID, Body: "legacy", AttachmentIDs: []uint64{att.ID}})
	s.Require().NoError(err)

	history, err := s.chat.History(s.ctx, channelID, s.customer.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Require().Len(history[0].Attachments, 1)
	token := history[0].Attachments[0].Token()
	s.NotEmpty(token)

	again, err := s.chat.History(s.ctx, channelID, s.agent.ID, 0)
	s.Require().NoError(err)
	s.Equal(token, again[0].Attachments[0].Token())
}

func (s *ServiceTestSuite) TestHistory_SkipsOtherMessageTypes() {
	channelID := s.enableChat(s.task.ID)
	s.Require().NoError(s.db.Create(&models.Message{ChannelID: channelID, AuthorPartnerID: s.agent.PartnerID, Body: "system", MessageType: "user_notification"}).Error)
	s.Require().NoError(s.db.Create(&models.Message{ChannelID: channelID, AuthorPartnerID: s.agent.PartnerID, Body: "note", MessageType: models.MessageTypeNotification}).Error)

	history, err := s.chat.History(s.ctx, channelID, s.customer.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("note", history[0].Body)
}

func (s *ServiceTestSuite) TestTaskChatInfo() {
	channelID := s.enableChat(s.task.ID)

	for _, userID := range []uint64{s.agent.ID, s.customer.ID} {
		task, err := s.chat.TaskChatInfo(s.ctx, s.task.ID, userID)
		s.Require().NoError(err)
		s.True(task.ChatEnabled)
		s.Require().NotNil(task.ChannelID)
		s.Equal(channelID, *task.ChannelID)
	}

	_, err := s.chat.TaskChatInfo(s.ctx, s.task.ID, s.outsider.ID)
	s.ErrorIs(err, ErrTaskNotFound)
	_, err = s.chat.TaskChatInfo(s.ctx, 9999, s.agent.ID)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *ServiceTestSuite) TestPost_NotifiesEveryMemberIncludingAuthor() {
	channelID := s.enableChat(s.task.ID)

	agentEvents, cancelAgent, err := s.hub.Subscribe(s.ctx, s.agent.PartnerID)
	s.Require().NoError(err)
	defer cancelAgent()
	customerEvents, cancelCustomer, err := s.hub.Subscribe(s.ctx, s.customer.PartnerID)
	s.Require().NoError(err)
	defer cancelCustomer()
	outsiderEvents, cancelOutsider, err := s.hub.Subscribe(s.ctx, s.outsider.PartnerID)
	s.Require().NoError(err)
	defer cancelOutsider()

	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.customer.ID, Body: "ping"})
	s.Require().NoError(err)

	for _, ch := range []<-chan notifyEvent{agentEvents, customerEvents} {
		select {
		case evt := <-ch:
			s.Equal("task_chat/new_message", evt.Meta.Type)
			var payload NewMessageEvent
			s.Require().NoError(evt.Decode(&payload))
			s.Equal(channelID, payload.ChannelID)
		case <-time.After(time.Second):
			s.Fail("expected a notification")
		}
	}

	select {
	case evt := <-outsiderEvents:
		s.Failf("unexpected notification", "%v", evt)
	default:
	}
}
