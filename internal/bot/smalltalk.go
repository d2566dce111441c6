// ABOUTME: Canned conversational replies: greetings, keyword-driven small
// ABOUTME: talk, and the generic rotation for out-of-scope chat.

package bot

import (
	"math/rand"
	"strings"
)

var greetings = []string{
	"Hi there! I'm the resident assistant. I can tell you about the projects and skills in my portfolio, or just chat about anything. What's on your mind today?",
	"Hello! Nice to meet you! I'm here to discuss technical projects, programming skills, or have a casual chat. How are you doing?",
	"Hey! Thanks for starting a conversation with me. I'd love to share information about development work, projects, or just chat about whatever interests you!",
	"Hi! I can help you learn about software projects, technologies, and development experience. Feel free to ask me anything!",
}

var genericResponses = []string{
	"That's interesting! Tell me more about that.",
	"I understand. Is there anything else you'd like to discuss?",
	"Thanks for chatting with me! I'm always here if you need someone to talk to.",
	"That sounds great! I hope everything works out well for you.",
	"I see what you mean. Have you considered trying a different approach?",
	"That's a good question! What do you think would be the best solution?",
	"I appreciate you sharing that with me. How are you feeling about it?",
	"Interesting perspective! I hadn't thought about it that way.",
	"I'm here to listen if you want to talk more about anything.",
	"I hope you have a great day! Feel free to message me anytime.",
}

// smallTalkRule pairs trigger keywords with a fixed reply.
type smallTalkRule struct {
	keywords []string
	reply    string
}

var smallTalkRules = []smallTalkRule{
	{
		keywords: []string{"how are you", "how do you feel", "what's up"},
		reply:    "I'm doing great, thank you for asking! I'm always excited to have new conversations. How about you?",
	},
	{
		keywords: []string{"hello", "hi", "hey", "greetings"},
		reply:    "Hello! It's great to hear from you! How are you doing?",
	},
	{
		keywords: []string{"bye", "goodbye", "see you", "farewell"},
		reply:    "Goodbye! It was lovely chatting with you. Take care and feel free to message me anytime!",
	},
	{
		keywords: []string{"thank", "thanks", "thx"},
		reply:    "You're very welcome! I'm happy I could help. Is there anything else you'd like to talk about?",
	},
	{
		keywords: []string{"help", "assistance", "support"},
		reply:    "I'd be happy to help! I can tell you about projects, skills, and development experience, or just chat. What's on your mind?",
	},
	{
		keywords: []string{"sad", "upset", "frustrated", "angry"},
		reply:    "I'm sorry to hear you're feeling that way. Sometimes it helps to talk about what's bothering you. I'm here to listen.",
	},
	{
		keywords: []string{"happy", "excited", "awesome", "wonderful"},
		reply:    "That's wonderful to hear! I love when people share positive news. What's making you so happy?",
	},
}

// smallTalk returns a canned reply for conversational keywords, or false when
// no rule matches.
func smallTalk(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, rule := range smallTalkRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply, true
			}
		}
	}
	return "", false
}

// genericReply picks one of the rotation responses for out-of-scope chat.
func genericReply() string {
	return genericResponses[rand.Intn(len(genericResponses))]
}

// greeting picks an introduction for a participant's first private contact.
func greeting() string {
	return greetings[rand.Intn(len(greetings))]
}
