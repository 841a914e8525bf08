package memory

import (
	"context"

	"campus-assessment-service/internal/domain"
)

// SectionDirectory is a static stand-in for the external section registry.
type SectionDirectory struct {
	sections map[string]string
}

func NewSectionDirectory(sections map[string]string) *SectionDirectory {
	return &SectionDirectory{sections: sections}
}

func (d *SectionDirectory) SectionName(_ context.Context, sectionID string) (string, error) {
	name, ok := d.sections[sectionID]
	if !ok {
		return "", domain.ErrSectionNotFound
	}
	return name, nil
}

// StudentDirectory is a static stand-in for the external account system.
// Unknown students resolve to their raw id so the results view never fails on
// a missing display name.
type StudentDirectory struct {
	students map[string]string
}

func NewStudentDirectory(students map[string]string) *StudentDirectory {
	return &StudentDirectory{students: students}
}

func (d *StudentDirectory) StudentName(_ context.Context, studentID string) (string, error) {
	if name, ok := d.students[studentID]; ok {
		return name, nil
	}
	return studentID, nil
}
