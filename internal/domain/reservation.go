package domain

import "time"

type Reservation struct {
	ID        string    `json:"id"`
	LotID     string    `json:"lot_id"`
	Plate     string    `json:"plate"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type ReservationDTO struct {
	Plate string `json:"plate" binding:"required,max=16"`
	User  string `json:"user" binding:"required,max=64"`
}
