package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
)

type normalizedSubmission struct {
	OwnerID   string          `json:"ownerId"`
	CenterID  string          `json:"centerId"`
	Pets      []normalizedPet `json:"pets"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
}

type normalizedPet struct {
	PetRef     string `json:"petRef"`
	Food       string `json:"food,omitempty"`
	Medicine   string `json:"medicine,omitempty"`
	Behavior   string `json:"behavior,omitempty"`
	Allergies  string `json:"allergies,omitempty"`
	OtherNotes string `json:"otherNotes,omitempty"`
}

// FingerprintSubmission builds a deterministic hash of a submission (excluding the idempotency key).
// Pet order is significant because it is kept on the application.
func FingerprintSubmission(ownerID string, input types.SubmitApplicationInput) (string, error) {
	normalized := normalizedSubmission{
		OwnerID:   ownerID,
		CenterID:  strings.TrimSpace(input.CenterID),
		StartDate: input.StartDate.UTC().Format(time.RFC3339Nano),
		EndDate:   input.EndDate.UTC().Format(time.RFC3339Nano),
		Pets:      make([]normalizedPet, 0, len(input.Pets)),
	}
	for _, pet := range input.Pets {
		normalized.Pets = append(normalized.Pets, normalizedPet{
			PetRef:     strings.TrimSpace(pet.PetRef),
			Food:       pet.Instructions.Food,
			Medicine:   pet.Instructions.Medicine,
			Behavior:   pet.Instructions.Behavior,
			Allergies:  pet.Instructions.Allergies,
			OtherNotes: pet.Instructions.OtherNotes,
		})
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
