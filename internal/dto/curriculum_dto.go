package dto

import "github.com/noah-isme/sekolah-go-api/internal/models"

// LevelCreateRequest creates a school level.
type LevelCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// ProgramCreateRequest creates the program of a level.
type ProgramCreateRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	LevelID uint   `json:"level_id" validate:"required,gt=0"`
}

// UnitCreateRequest creates a unit inside a program.
type UnitCreateRequest struct {
	Title     string `json:"title" validate:"required,min=1,max=255"`
	ProgramID uint   `json:"program_id" validate:"required,gt=0"`
}

type LevelResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ProgramResponse struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	LevelID   uint   `json:"level_id"`
	LevelName string `json:"level_name"`
}

type UnitResponse struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	ProgramID uint   `json:"program_id"`
}

func NewLevelResponse(level models.Level) LevelResponse {
	return LevelResponse{ID: level.ID, Name: level.Name}
}

func NewLevelResponseSlice(levels []models.Level) []LevelResponse {
	out := make([]LevelResponse, 0, len(levels))
	for _, level := range levels {
		out = append(out, NewLevelResponse(level))
	}
	return out
}

func NewProgramResponse(program models.Program) ProgramResponse {
	resp := ProgramResponse{ID: program.ID, Title: program.Title, LevelID: program.LevelID, LevelName: Unavailable}
	if program.Level != nil {
		resp.LevelName = program.Level.Name
	}
	return resp
}

func NewProgramResponseSlice(programs []models.Program) []ProgramResponse {
	out := make([]ProgramResponse, 0, len(programs))
	for _, program := range programs {
		out = append(out, NewProgramResponse(program))
	}
	return out
}

func NewUnitResponse(unit models.Unit) UnitResponse {
	return UnitResponse{ID: unit.ID, Title: unit.Title, ProgramID: unit.ProgramID}
}

func NewUnitResponseSlice(units []models.Unit) []UnitResponse {
	out := make([]UnitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, NewUnitResponse(unit))
	}
	return out
}
