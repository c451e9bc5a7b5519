package orchestrator

// Outbound copy. Written in English; sendText translates each message into
// the conversation language before delivery.
const (
	msgRequestSymptoms = "Hello! I can connect you with a health provider near you. Could you tell me what symptoms you are experiencing?"

	msgRequestLocation = "To find providers near you, please share your location. You can tap the button below to send your GPS location, or type the name of your town or neighborhood."

	// msgConfirmLocation takes the geocoded address.
	msgConfirmLocation = "I found this location: %s. Is this correct? Please reply yes or no."

	// msgLocationSaved and msgGPSSaved take the saved location description.
	msgLocationSaved = "Perfect, I've saved your location: %s."
	msgGPSSaved      = "Perfect, I've saved your location (%s)."

	msgLocationRetry = "No problem. Could you describe your location differently, or share your GPS location with the button below?"

	msgGPSOnly = "I'm having trouble finding your location from the description. Please use the button below to share your GPS location directly."

	// msgLocationNotFound takes the country name.
	msgLocationNotFound = "I couldn't find that location in %s. Could you try describing it differently, or share your GPS location?"

	msgNoPartners = "I'm sorry, I couldn't find a health provider near you for those symptoms right now. You can try again later or describe your symptoms differently."

	msgReferralHeader = "Based on your symptoms, these providers near you can help:"
	msgReferralFooter = "Please contact them directly to arrange a visit. We hope you feel better soon!"

	msgAskAnother = "Would you like a referral for a different health concern? Please reply yes or no."

	msgNewRound = "Of course! What symptoms would you like help with this time?"

	msgGoodbye = "Alright. If you need anything else, just send me a message. Take care!"

	msgResetDone = "Your conversation has been reset. Send me a message whenever you'd like to start again."
)
