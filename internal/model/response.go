package model

// SendMessageResponse 发送消息响应，在流式生成开始前返回
type SendMessageResponse struct {
	ConversationID string `json:"conversationId"`
}

// ProviderInfo Provider 目录项
type ProviderInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Models         []string `json:"models"`
	RequiresAPIKey bool     `json:"requiresApiKey"`
}

// ProvidersResponse Provider 列表响应
type ProvidersResponse struct {
	Items      []ProviderInfo `json:"items"`
	ItemsCount int            `json:"itemsCount"`
}

// ProjectWithConversationResponse 新建项目并移入对话的结果
type ProjectWithConversationResponse struct {
	Project      *Project      `json:"project"`
	Conversation *Conversation `json:"conversation"`
}
