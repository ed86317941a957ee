package live

var customerPhrases = []string{
	"Can you tell me more about my order status?",
	"I'm still waiting for a response about my return.",
	"Thank you for your help!",
	"This isn't what I was expecting.",
	"How long will the shipping take?",
	"I need to change my delivery address.",
	"Is there a way to expedite this process?",
}

var agentPhrases = []string{
	"I'm checking your order status now.",
	"Let me look into that for you.",
	"Is there anything else I can help you with?",
	"I've updated your information in our system.",
	"Your order will arrive in 2-3 business days.",
	"I apologize for the inconvenience.",
	"Thank you for your patience.",
}

var firstNames = []string{"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda", "William", "Elizabeth"}

var lastNames = []string{"Smith", "Johnson", "Williams", "Jones", "Brown", "Davis", "Miller", "Wilson", "Moore", "Taylor"}
