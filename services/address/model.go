package address

import "time"

type Address struct {
	UID            string
	UserUID        string
	Name           string
	Surname        string
	Title          string
	Text           string
	DistrictID     int
	NeighborhoodID int
	CreatedAt      time.Time
	LastModified   *time.Time
}
