package access

import "gorm.io/gorm"

// VisibleProjects restricts a query on the projects table to projects the
// identity owns or is a member of. It filters with a sub-select rather
// than a join so rows are never duplicated.
func VisibleProjects(id Identity) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !id.Authenticated() {
			return db.Where("1 = 0")
		}
		memberOf := db.Session(&gorm.Session{NewDB: true}).
			Table("project_members").
			Select("project_id").
			Where("user_id = ?", id.UserID)
		return db.Where("projects.owner_id = ? OR projects.id IN (?)", id.UserID, memberOf)
	}
}

// VisibleTasks restricts a query on the tasks table to tasks whose project
// is visible to the identity.
func VisibleTasks(id Identity) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !id.Authenticated() {
			return db.Where("1 = 0")
		}
		projects := db.Session(&gorm.Session{NewDB: true}).
			Table("projects").
			Select("projects.id").
			Scopes(VisibleProjects(id))
		return db.Where("tasks.project_id IN (?)", projects)
	}
}
