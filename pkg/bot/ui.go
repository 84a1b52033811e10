package bot

import (
	"github.com/slack-go/slack"
)

const (
	faucetButtonActionID  = "faucet_button"
	walletModalCallbackID = "wallet_modal"
	walletInputBlockID    = "wallet_block"
	walletInputActionID   = "wallet_input"
)

// faucetMessageBlocks builds the sticky faucet message: the call to action,
// the current per-hit status line, and the button.
func faucetMessageBlocks(statusLine string) []slack.Block {
	text := "Click below to hit the TOKE Machine for some free $TOKE!"
	if statusLine != "" {
		text += "\n_" + statusLine + "_"
	}

	button := slack.NewButtonBlockElement(
		faucetButtonActionID,
		"hit",
		slack.NewTextBlockObject(slack.PlainTextType, "Take a hit!", true, false),
	).WithStyle(slack.StylePrimary)

	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			nil, nil,
		),
		slack.NewActionBlock("faucet_actions", button),
	}
}

// walletModal builds the wallet-address input form.
func walletModal() slack.ModalViewRequest {
	input := slack.NewInputBlock(
		walletInputBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Enter your wallet address", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(nil, walletInputActionID),
	)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: walletModalCallbackID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Input Wallet Address", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks:     slack.Blocks{BlockSet: []slack.Block{input}},
	}
}

// walletAddressFromView extracts the submitted address from the modal state.
func walletAddressFromView(view slack.View) string {
	if view.State == nil {
		return ""
	}
	if block, ok := view.State.Values[walletInputBlockID]; ok {
		if action, ok := block[walletInputActionID]; ok {
			return action.Value
		}
	}
	return ""
}
