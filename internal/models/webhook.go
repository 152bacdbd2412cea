package models

type TrelloCardData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	IDList    string `json:"idList"`
	Due       string `json:"due"`
	ShortLink string `json:"shortLink"`
	Closed    bool   `json:"closed"`
}

type TrelloBoardData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TrelloListData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TrelloActionData struct {
	Card       *TrelloCardData  `json:"card"`
	Board      *TrelloBoardData `json:"board"`
	List       *TrelloListData  `json:"list"`
	ListBefore *TrelloListData  `json:"listBefore"`
	ListAfter  *TrelloListData  `json:"listAfter"`
	Old        map[string]any   `json:"old"`
}

type TrelloWebhookAction struct {
	ID   string           `json:"id"`
	Type string           `json:"type"` // e.g., "createCard", "updateCard"
	Data TrelloActionData `json:"data"`
}

type TrelloWebhookPayload struct {
	Action *TrelloWebhookAction `json:"action"`
	Model  *struct {
		ID string `json:"id"`
	} `json:"model"`
}

// BoardID resolves the board the event belongs to.
func (p *TrelloWebhookPayload) BoardID() string {
	if p.Model != nil && p.Model.ID != "" {
		return p.Model.ID
	}
	if p.Action != nil && p.Action.Data.Board != nil {
		return p.Action.Data.Board.ID
	}
	return ""
}
