package models

import "time"

type TrelloMember struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type TrelloBoard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Closed bool   `json:"closed"`
}

type TrelloList struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IDBoard string  `json:"idBoard"`
	Closed  bool    `json:"closed"`
	Pos     float64 `json:"pos"`
}

type TrelloCard struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	IDList    string `json:"idList"`
	IDBoard   string `json:"idBoard"`
	Due       string `json:"due"`
	ShortLink string `json:"shortLink"`
	URL       string `json:"url"`
	Closed    bool   `json:"closed"`
}

// TrelloCardInput carries the fields written on card create/update.
// An empty ListID on update leaves the card in its current list; a nil Due on
// update clears the card's due date.
type TrelloCardInput struct {
	Name   string
	Desc   string
	ListID string
	Due    *time.Time
}
