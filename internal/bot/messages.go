package bot

import "fmt"

const (
	msgPleaseInitialize = "Please initialize"
	msgHereIsYourCard   = "Here's your card"
	msgReinitializing   = "Access token expired or not valid. Reinitializing..."
	msgWelcome          = "Hello! I'm here to help you provision Webex devices for your organization. " +
		"Please provide me with your organization ID and an admin's access token."
	msgInitSuccess  = "Initialization success."
	msgInitHint     = "Bot initialized. If you need to update the access token, please use the 'reinit' command, or type 'help' to view all available commands."
	msgCodeFailed   = "Something went wrong. Please check if you need to update the access token."
	msgUnauthorized = "You're unauthorized. Please contact the person who initialized the bot if you require access."
	msgTokenUpdated = "Access token successfully updated."
	msgTokenInvalid = "Token invalid. Please double check and try again."
)

func msgUserAdded(email string) string {
	return fmt.Sprintf("User %s added successfully.", email)
}

func msgAddFailed(email string) string {
	return fmt.Sprintf("Please provide a valid email as a second argument. If %s was valid, check if you need to update your access token.", email)
}

func msgUserRemoved(email string) string {
	return fmt.Sprintf("User %s removed successfully.", email)
}

func msgRemoveFailed(email string) string {
	return fmt.Sprintf("User not found in allowed list. If %s was valid, check if you need to update your access token.", email)
}

func msgActivationCode(code string) string {
	return fmt.Sprintf("Here's your activation code: %s", SplitCode(code))
}

func msgInitFailed(support string) string {
	if support == "" {
		return "Initialization unsuccessful. Please check your organization ID and access token."
	}
	return fmt.Sprintf("Initialization unsuccessful. Please check your organization ID and access token or contact %s for assistance.", support)
}

func msgHelp(support string) string {
	s := "To initialize the bot, please fill out the card. If you don't see the card, mention the bot to receive it. " +
		"If the bot is already initialized, mention the bot to receive a card to fill out to get an activation code.\n\n" +
		"Other commands include:\n" +
		"- add [email]: add an authorized user to your organization; add several at once separated with a space\n" +
		"- remove [email]: remove an authorized user from your organization; remove several at once separated with a space\n" +
		"- token [token]: update the access token\n" +
		"- reinit: reinitialize the bot (if you would like to change the organization for this room)."
	if support != "" {
		s += fmt.Sprintf("\n\nIf you require further assistance, please contact %s.", support)
	}
	return s
}
