package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/alembiq/bunsen-core/core/realtime"
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
)

// clientMessage is the envelope for every outbound frame. Exactly one
// field is set per frame.
type clientMessage struct {
	Setup         *setup         `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
	ClientContent *clientContent `json:"clientContent,omitempty"`
	ToolResponse  *toolResponse  `json:"toolResponse,omitempty"`
}

type setup struct {
	Model                    string                    `json:"model"`
	GenerationConfig         *generationConfig         `json:"generationConfig,omitempty"`
	SystemInstruction        *content                  `json:"systemInstruction,omitempty"`
	Tools                    []toolDeclaration         `json:"tools,omitempty"`
	InputAudioTranscription  *audioTranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *audioTranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

// audioTranscriptionConfig marshals to an empty object; its presence
// enables server-side transcription of the corresponding stream.
type audioTranscriptionConfig struct{}

type toolDeclaration struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks,omitempty"`
}

type clientContent struct {
	Turns        []content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses,omitempty"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type serverMessage struct {
	SetupComplete *setupComplete `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCall      `json:"toolCall,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type setupComplete struct{}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

type toolCall struct {
	FunctionCalls []functionCall `json:"functionCalls,omitempty"`
}

type functionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

func newSetup(model string, config realtime.SessionConfig) *setup {
	s := &setup{
		Model: model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &audioTranscriptionConfig{},
		OutputAudioTranscription: &audioTranscriptionConfig{},
	}

	if config.Voice != "" {
		s.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: &voiceConfig{
				PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}

	if config.SystemInstruction != "" {
		s.SystemInstruction = &content{Parts: []part{{Text: config.SystemInstruction}}}
	}

	if len(config.Tools) > 0 {
		var declarations []functionDeclaration
		copier.Copy(&declarations, config.Tools)
		s.Tools = []toolDeclaration{{FunctionDeclarations: declarations}}
	}

	return s
}

// decodeServerMessage flattens a raw server frame into a
// realtime.ServerMessage. Coexisting fields are all preserved.
func decodeServerMessage(data []byte) (realtime.ServerMessage, error) {
	var raw serverMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return realtime.ServerMessage{}, fmt.Errorf("failed to unmarshal server message: %w", err)
	}

	message := realtime.ServerMessage{
		SetupComplete: raw.SetupComplete != nil,
		GoAway:        raw.GoAway != nil,
	}

	if raw.ServerContent != nil {
		message.TurnComplete = raw.ServerContent.TurnComplete
		message.Interrupted = raw.ServerContent.Interrupted
		if raw.ServerContent.InputTranscription != nil {
			message.InputTranscription = raw.ServerContent.InputTranscription.Text
		}
		if raw.ServerContent.OutputTranscription != nil {
			message.OutputTranscription = raw.ServerContent.OutputTranscription.Text
		}
		if raw.ServerContent.ModelTurn != nil {
			for _, part := range raw.ServerContent.ModelTurn.Parts {
				if part.InlineData != nil {
					message.Audio = append(message.Audio, realtime.Blob{
						MIMEType: part.InlineData.MIMEType,
						Data:     part.InlineData.Data,
					})
				}
			}
		}
	}

	if raw.ToolCall != nil {
		for _, call := range raw.ToolCall.FunctionCalls {
			message.ToolCalls = append(message.ToolCalls, realtime.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
		}
	}

	return message, nil
}
