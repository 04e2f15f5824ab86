package bolt_test

import "github.com/fastygo/todolog/repository"

func repositoryFilter(userID, todoID string) repository.AuditFilter {
	return repository.AuditFilter{UserID: userID, TodoID: todoID}
}
