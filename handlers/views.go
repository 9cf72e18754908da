package handlers

import (
	"fmt"
	"time"

	"taskmanager/models"
	"taskmanager/store"
)

// Response shapes. Detail views embed related users and tags; list views
// stay lighter.

type projectListView struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	OwnerDetail models.User `json:"owner_detail"`
	TaskCount   int64       `json:"task_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type projectView struct {
	projectListView
	Owner         uint          `json:"owner"`
	Members       []uint        `json:"members"`
	MembersDetail []models.User `json:"members_detail"`
}

func newProjectListView(p *models.Project, taskCount int64) projectListView {
	return projectListView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerDetail: p.Owner,
		TaskCount:   taskCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newProjectView(p *models.Project, taskCount int64) projectView {
	members := p.Members
	if members == nil {
		members = []models.User{}
	}
	return projectView{
		projectListView: newProjectListView(p, taskCount),
		Owner:           p.OwnerID,
		Members:         p.MemberIDs(),
		MembersDetail:   members,
	}
}

type taskListView struct {
	ID              uint            `json:"id"`
	Title           string          `json:"title"`
	Description     *string         `json:"description"`
	Project         uint            `json:"project"`
	ProjectTitle    string          `json:"project_title"`
	Status          models.Status   `json:"status"`
	Priority        models.Priority `json:"priority"`
	DueDate         *time.Time      `json:"due_date"`
	AssigneesDetail []models.User   `json:"assignees_detail"`
	TagsDetail      []models.Tag    `json:"tags_detail"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type taskView struct {
	taskListView
	ProjectDetail    projectListView `json:"project_detail"`
	Assignees        []uint          `json:"assignees"`
	Tags             []uint          `json:"tags"`
	CreatedBy        *uint           `json:"created_by"`
	CreatedByDetail  *models.User    `json:"created_by_detail"`
	CommentsCount    int64           `json:"comments_count"`
	AttachmentsCount int64           `json:"attachments_count"`
}

type taskDetailView struct {
	taskView
	Comments    []models.Comment `json:"comments"`
	Attachments []attachmentView `json:"attachments"`
}

func newTaskListView(t *models.Task) taskListView {
	assignees := t.Assignees
	if assignees == nil {
		assignees = []models.User{}
	}
	tags := t.Tags
	if tags == nil {
		tags = []models.Tag{}
	}
	return taskListView{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Project:         t.ProjectID,
		ProjectTitle:    t.Project.Title,
		Status:          t.Status,
		Priority:        t.Priority,
		DueDate:         t.DueDate,
		AssigneesDetail: assignees,
		TagsDetail:      tags,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func newTaskView(t *models.Task, counts store.TaskCounts, projectTasks int64) taskView {
	v := taskView{
		taskListView:     newTaskListView(t),
		ProjectDetail:    newProjectListView(&t.Project, projectTasks),
		Assignees:        make([]uint, 0, len(t.Assignees)),
		Tags:             make([]uint, 0, len(t.Tags)),
		CreatedBy:        t.CreatedByID,
		CreatedByDetail:  t.CreatedBy,
		CommentsCount:    counts.Comments,
		AttachmentsCount: counts.Attachments,
	}
	for _, a := range t.Assignees {
		v.Assignees = append(v.Assignees, a.ID)
	}
	for _, tag := range t.Tags {
		v.Tags = append(v.Tags, tag.ID)
	}
	return v
}

type attachmentView struct {
	ID               uint         `json:"id"`
	Task             uint         `json:"task"`
	File             string       `json:"file"`
	FileName         string       `json:"file_name"`
	Size             int64        `json:"size"`
	ContentType      string       `json:"content_type"`
	UploadedBy       *uint        `json:"uploaded_by"`
	UploadedByDetail *models.User `json:"uploaded_by_detail"`
	UploadedAt       time.Time    `json:"uploaded_at"`
}

func newAttachmentView(a *models.TaskAttachment) attachmentView {
	return attachmentView{
		ID:               a.ID,
		Task:             a.TaskID,
		File:             fmt.Sprintf("/api/tasks/attachments/%d/download/", a.ID),
		FileName:         a.FileName(),
		Size:             a.Size,
		ContentType:      a.ContentType,
		UploadedBy:       a.UploadedByID,
		UploadedByDetail: a.UploadedBy,
		UploadedAt:       a.UploadedAt,
	}
}
