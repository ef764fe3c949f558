package utils

import "image/color"

//ZoneColor is the color of the strike zone rectangle
var ZoneColor = color.RGBA{255, 255, 255, 0}

//StrikeColor is used for the verdict text and the live ball marker while the ball is inside the zone
var StrikeColor = color.RGBA{0, 255, 0, 0}

//BallColor is used for the verdict text and the live ball marker while the ball is outside the zone
var BallColor = color.RGBA{255, 0, 0, 0}

//TrailColor is the color of the ball's trail in the current pitch
var TrailColor = color.RGBA{255, 128, 0, 0}

//BallMarkerRadius is the radius in pixels of the filled circle drawn at the ball's center
const BallMarkerRadius = 10

//VerdictFontScale is the font scale of the big "STRIKE"/ "BALL" text
const VerdictFontScale = 3

//VerdictThickness is the stroke thickness of the verdict text
const VerdictThickness = 5

//VerdictTextOrigin is where the verdict text is written, relative to frame's width and height
const VerdictTextOriginX, VerdictTextOriginY = 0.05, 0.2

//TempVideoExt is the container of the intermediate tagged video, ffmpeg converts it to the production format
const TempVideoExt = "avi"

//TempVideoCodec is the fourcc of the intermediate tagged video (XVID == MPEG-4 codec)
const TempVideoCodec = "XVID"

//VerdictsFileSuffix is appended to a processed video's base name for its verdicts export
const VerdictsFileSuffix = ".verdicts.json"
