// Package commands defines the shutterctl CLI for driving a capture station.
//
// Commands
//
//   - state     Show the workflow state
//   - start     Start the camera stream
//   - capture   Freeze the live stream into a still
//   - process   Count objects in the captured still
//   - retake    Discard the still and return to streaming
//   - reset     Clear the workflow back to a clean state
//   - frame     Download the captured still as JPEG
//   - history   List recent capture results
//   - export    Download the history as CSV
//   - watch     Stream workflow events as they happen
//
// All commands talk to the station's REST API; watch tails the event
// websocket. The station URL comes from --station or SHUTTERBOX_URL.
package commands
