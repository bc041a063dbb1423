// Package events defines the typed session event contract.
//
// Event kinds are grouped by namespaces:
//
//   - session.*
//   - transcript.*
//   - playback.*
//   - capture.*
//   - tool_call.*
//   - visualization.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Completed/Finished: terminal state for the current turn or stream.
//
// session events
//
//   - SessionStateChanged (session.state_changed): connection state
//     transition.
//   - SessionError (session.error): error surfaced by the session, with
//     the stage that produced it.
//
// transcript events
//
//   - UserTranscriptUpdated (transcript.user_updated): cumulative user
//     utterance transcript; replaces earlier text for the same message.
//   - AssistantTranscriptUpdated (transcript.assistant_updated):
//     cumulative assistant reply transcript; replaces earlier text for
//     the same message.
//   - TranscriptTurnCompleted (transcript.turn_completed): both sides of
//     the current turn were finalized.
//
// playback events
//
//   - PlaybackStarted (playback.started): first chunk of an assistant
//     reply was scheduled.
//   - PlaybackFinished (playback.finished): all scheduled audio played.
//   - PlaybackInterrupted (playback.interrupted): pending audio was
//     discarded after a model interruption.
//
// capture events
//
//   - CaptureFrameDropped (capture.frame_dropped): a microphone frame
//     was dropped rather than buffered.
//
// tool_call events
//
//   - ToolCallReceived (tool_call.received): the model requested a tool
//     call.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed; an
//     error-shaped response was still sent.
//
// visualization events
//
//   - VisualizationUpdated (visualization.updated): the visualization
//     state changed as a result of a tool call.
package events
