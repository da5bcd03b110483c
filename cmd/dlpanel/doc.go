// Command dlpanel is the terminal control panel for a remote episode download
// service. It lists and manages download jobs and subscriptions, triages the
// subscription schedule, builds episode selections, and offers a live view
// (`dlpanel watch`) fed by the service's push channel.
package main
