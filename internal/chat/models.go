package chat

// Message est un tour de conversation étiqueté par son rôle
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest est le corps de la requête du client
type ChatRequest struct {
	Messages []Message `json:"messages"`
}
