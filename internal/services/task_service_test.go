package services

import (
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/storage"
	"github.com/yukikurage/task-chat-api/internal/testutil"
)

func (s *ServiceTestSuite) TestEnableChat_CreatesChannelWithAgentAndCustomer() {
	channelID := s.enableChat(s.task.ID)

	channel, err := s.channels.findChannel(s.ctx, channelID)
	s.Require().NoError(err)
	s.Equal("Task Chat: Fix printer", channel.Name)
	s.Equal(models.ChannelTypeGroup, channel.ChannelType)
	s.ElementsMatch([]uint64{s.agent.PartnerID, s.customer.PartnerID}, channel.PartnerIDs())
	s.True(IsTaskChat(channel))
}

func (s *ServiceTestSuite) TestEnableChat_Idempotent() {
	first := s.enableChat(s.task.ID)
	second := s.enableChat(s.task.ID)
	s.Equal(first, second)

	var count int64
	s.Require().NoError(s.db.Model(&models.Channel{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *ServiceTestSuite) TestDisableChat_NeverCreatesChannel() {
	task, err := s.tasks.UpdateTask(s.ctx, s.task.ID, UpdateTaskInput{ChatEnabled: boolPtr(false)})
	s.Require().NoError(err)
	s.False(task.ChatEnabled)
	s.Nil(task.ChannelID)

	title := "Fix the printer"
	task, err = s.tasks.UpdateTask(s.ctx, s.task.ID, UpdateTaskInput{Title: &title})
	s.Require().NoError(err)
	s.Nil(task.ChannelID)

	var count int64
	s.Require().NoError(s.db.Model(&models.Channel{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ServiceTestSuite) TestEnableChat_NoMembersKeepsFlag() {
	lonely := testutil.CreateTask(s.T(), s.db, "Nobody", s.org, s.agent, nil)

	task, err := s.tasks.UpdateTask(s.ctx, lonely.ID, UpdateTaskInput{ChatEnabled: boolPtr(true)})
	s.Require().NoError(err)
	s.True(task.ChatEnabled)
	s.Nil(task.ChannelID)

	// assigning someone later and enabling again creates the channel
	s.Require().NoError(s.tasks.AssignUsers(AssignUsersInput{TaskID: lonely.ID, ActorID: s.agent.ID, UserIDs: []uint64{s.agent.ID}}))
	s.NotZero(s.enableChat(lonely.ID))
}

func (s *ServiceTestSuite) TestEnableChat_DeduplicatesCustomerWhoIsAssigned() {
	task := testutil.CreateTask(s.T(), s.db, "Self service", s.org, s.agent, s.agent, s.agent)
	channelID := s.enableChat(task.ID)

	channel, err := s.channels.findChannel(s.ctx, channelID)
	s.Require().NoError(err)
	s.Equal([]uint64{s.agent.PartnerID}, channel.PartnerIDs())
}

func (s *ServiceTestSuite) TestDeleteTaskChannel_ThenReEnableRecreates() {
	first := s.enableChat(s.task.ID)

	s.ErrorIs(s.channels.DeleteTaskChannel(s.ctx, s.task.ID, s.customer.ID), ErrNotTaskCreator)
	s.Require().NoError(s.channels.DeleteTaskChannel(s.ctx, s.task.ID, s.agent.ID))
	s.ErrorIs(s.channels.DeleteTaskChannel(s.ctx, s.task.ID, s.agent.ID), ErrChannelNotFound)

	task, err := s.tasks.GetTask(s.task.ID)
	s.Require().NoError(err)
	s.Nil(task.ChannelID)
	s.True(task.ChatEnabled)

	second := s.enableChat(s.task.ID)
	channel, err := s.channels.findChannel(s.ctx, second)
	s.Require().NoError(err)
	s.ElementsMatch([]uint64{s.agent.PartnerID, s.customer.PartnerID}, channel.PartnerIDs())
	s.NotZero(first)
}

func (s *ServiceTestSuite) TestDeleteTaskChannel_RemovesMessagesAndAttachments() {
	channelID := s.enableChat(s.task.ID)

	posted, err := s.upload(channelID, s.customer.ID, "photo.png", pngHeader)
	s.Require().NoError(err)
	pending, err := s.upload(channelID, s.customer.ID, "draft.txt", []byte("not posted yet"))
	s.Require().NoError(err)

	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{
		ChannelID: channelID, UserID: s.customer.ID, Body: "see photo", AttachmentIDs: []uint64{posted.ID},
	})
	s.Require().NoError(err)
	_, err = s.chat.PostMessage(s.ctx, PostMessageInput{ChannelID: channelID, UserID: s.agent.ID, Body: "thanks"})
	s.Require().NoError(err)

	s.Require().NoError(s.channels.DeleteTaskChannel(s.ctx, s.task.ID, s.agent.ID))

	var messages, links, adopted int64
	s.Require().NoError(s.db.Model(&models.Message{}).Where("channel_id = ?", channelID).Count(&messages).Error)
	s.Require().NoError(s.db.Table("message_attachments").Count(&links).Error)
	s.Require().NoError(s.db.Model(&models.Attachment{}).Where("id = ?", posted.ID).Count(&adopted).Error)
	s.Zero(messages)
	s.Zero(links)
	s.Zero(adopted)

	_, err = s.blobs.Download(s.ctx, posted.StorageKey)
	s.ErrorIs(err, storage.ErrNotFound)

	// an upload that was never posted does not belong to the channel
	_, rc, err := s.chat.OpenAttachment(s.ctx, pending.ID, pending.Token())
	s.Require().NoError(err)
	s.NoError(rc.Close())
}

func (s *ServiceTestSuite) TestCreateTask_ValidatesInput() {
	_, err := s.tasks.CreateTask(CreateTaskInput{OrganizationID: s.org.ID, CreatorID: s.agent.ID})
	s.ErrorIs(err, ErrTitleRequired)

	_, err = s.tasks.CreateTask(CreateTaskInput{Title: "x", OrganizationID: s.org.ID, CreatorID: s.outsider.ID})
	s.ErrorIs(err, ErrNotOrganizationMember)

	missing := uint64(9999)
	_, err = s.tasks.CreateTask(CreateTaskInput{Title: "x", OrganizationID: s.org.ID, CreatorID: s.agent.ID, CustomerPartnerID: &missing})
	s.ErrorIs(err, ErrCustomerNotFound)

	task, err := s.tasks.CreateTask(CreateTaskInput{Title: "x", OrganizationID: s.org.ID, CreatorID: s.agent.ID, CustomerPartnerID: &s.customer.PartnerID})
	s.Require().NoError(err)
	s.Equal(models.TaskStatusTodo, task.Status)
	s.False(task.ChatEnabled)
	s.Require().Len(task.Assignments, 1)
	s.Equal(s.agent.ID, task.Assignments[0].UserID)
}

func (s *ServiceTestSuite) TestAssignUsers_RejectsPortalUsers() {
	err := s.tasks.AssignUsers(AssignUsersInput{TaskID: s.task.ID, ActorID: s.agent.ID, UserIDs: []uint64{s.customer.ID}})
	s.ErrorIs(err, ErrInvalidTaskAssignee)

	err = s.tasks.AssignUsers(AssignUsersInput{TaskID: s.task.ID, ActorID: s.customer.ID, UserIDs: []uint64{s.agent.ID}})
	s.ErrorIs(err, ErrNotTaskCreator)

	s.ErrorIs(s.tasks.AssignUsers(AssignUsersInput{TaskID: s.task.ID, ActorID: s.agent.ID}), ErrNoUserIDsProvided)
}

func (s *ServiceTestSuite) TestListTasks_CustomerSeesOwnTasks() {
	tasks, total, err := s.tasks.ListTasks(ListTasksInput{UserID: s.customer.ID, Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(tasks, 1)
	s.Equal(s.task.ID, tasks[0].ID)

	tasks, total, err = s.tasks.ListTasks(ListTasksInput{UserID: s.outsider.ID, Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(tasks)

	s.enableChat(s.task.ID)
	tasks, _, err = s.tasks.ListTasks(ListTasksInput{UserID: s.agent.ID, ChatEnabled: boolPtr(true), Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
}

func (s *ServiceTestSuite) TestUpdateTask_Errors() {
	_, err := s.tasks.UpdateTask(s.ctx, 9999, UpdateTaskInput{})
	s.ErrorIs(err, ErrTaskNotFound)

	empty := ""
	_, err = s.tasks.UpdateTask(s.ctx, s.task.ID, UpdateTaskInput{Title: &empty})
	s.ErrorIs(err, ErrTitleEmpty)

	task, err := s.tasks.UpdateTask(s.ctx, s.task.ID, UpdateTaskInput{ClearCustomer: true})
	s.Require().NoError(err)
	s.Nil(task.CustomerPartnerID)
}
