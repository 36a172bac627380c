package ai

// DefaultChatPrompt is the system message for chat mode.
const DefaultChatPrompt = "When asked for code, provide clean, well-formatted examples using the appropriate language. Add comments if necessary."
