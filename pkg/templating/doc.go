/*
Package templating is the rendering core of Nepenthes. It resolves template
names to files, compiles and caches them, executes them with Go's html/template
and collects the CSS, scripts and HTML fragments that templates queue for the
page head and foot.

The package is split into two halves. An Environment is created once per
process and holds the configuration, the template path and parse caches, the
hook registry and plugin template functions. An Engine is created per request
with Environment.NewEngine and holds the render stack, the input namespace and
the output queues. Templates are parsed once by the Environment and bound to
each Engine's functions, so template functions always act on the request that
is rendering.

Template names are resolved against the site or control panel template root,
trying the literal name, then each configured extension, then each index file.
Site requests look in a directory named after their locale first, and control
panel and action requests fall back to the template directories of plugins.

Besides the standard template actions, templates can call include, hook,
renderObject, the include* output functions, headHtml and footHtml, the
namespace* input helpers, t and a small set of formatting and math helpers.
*/
package templating
