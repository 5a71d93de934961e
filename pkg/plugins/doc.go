/*
Package plugins keeps track of the plugins installed in Nepenthes.

Plugins are either registered from Go with New or discovered on disk: every
directory below the plugin root that holds a plugin.yaml manifest becomes a
plugin whose templates live in its templates subdirectory. A manifest may
declare variables, which are exposed to every template as functions of the
same name.

The rendering engine consumes the Registry through templating.PluginSource.
*/
package plugins
