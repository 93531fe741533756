package service

import (
	"github.com/google/uuid"

	"pcba-mpi-api-server/internal/models"
)

var defaultSectionTitles = []string{
	"Kitting",
	"SMT Preparation",
	"SMT Top Side",
	"SMT Bottom Side",
	"Reflow Soldering",
	"AOI",
	"X-Ray Inspection",
	"Manual Assembly",
	"Through-Hole Assembly",
	"Wave Soldering",
	"Hand Soldering",
	"Wash",
	"Conformal Coating",
	"Programming",
	"In-Circuit Test",
	"Functional Test",
	"Touch-Up & Rework",
	"Final QC",
	"Packaging",
	"Shipping",
}

// DefaultSections returns the ordered, empty section list every new MPI starts with.
func DefaultSections() []models.Section {
	sections := make([]models.Section, len(defaultSectionTitles))
	for i, title := range defaultSectionTitles {
		sections[i] = models.Section{
			ID:     uuid.NewString(),
			Title:  title,
			Order:  i,
			Images: []string{},
		}
	}
	return sections
}
